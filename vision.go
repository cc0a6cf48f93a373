package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
)

// labelDetector is the slice of the Rekognition client the vision analyzer uses.
type labelDetector interface {
	DetectLabels(ctx context.Context, in *rekognition.DetectLabelsInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error)
}

// genericLabels are Rekognition labels that say "this is food" without
// saying which food.
var genericLabels = map[string]bool{
	"food": true, "meal": true, "dish": true, "plate": true, "lunch": true,
	"dinner": true, "breakfast": true, "brunch": true, "produce": true,
	"cutlery": true, "bowl": true, "table": true, "platter": true, "cuisine": true,
	"supper": true, "tableware": true, "dining table": true,
}

// visionAnalyzer labels a meal photo with Rekognition and hands the specific
// labels to the text analyzer for nutrition estimates.
type visionAnalyzer struct {
	labels labelDetector
	text   foodAnalyzer
}

// decodeDataURI splits "data:<mime>;base64,<payload>" into content type and
// bytes.
func decodeDataURI(uri string) (string, []byte, error) {
	meta, payload, ok := strings.Cut(uri, ",")
	if !ok || !strings.HasPrefix(meta, "data:") || !strings.HasSuffix(meta, ";base64") {
		return "", nil, invalid("photo", "must be a base64 data URI")
	}
	contentType := strings.TrimSuffix(strings.TrimPrefix(meta, "data:"), ";base64")
	if !strings.HasPrefix(contentType, "image/") {
		return "", nil, invalid("photo", fmt.Sprintf("unsupported content type %q", contentType))
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, invalid("photo", "invalid base64 payload")
	}
	return contentType, data, nil
}

func (v *visionAnalyzer) Analyze(ctx context.Context, req analysisRequest) (analysisResult, error) {
	_, data, err := decodeDataURI(req.Input)
	if err != nil {
		return analysisResult{}, err
	}

	out, err := v.labels.DetectLabels(ctx, &rekognition.DetectLabelsInput{
		Image:         &types.Image{Bytes: data},
		MaxLabels:     aws.Int32(10),
		MinConfidence: aws.Float32(75),
	})
	if err != nil {
		return analysisResult{}, fmt.Errorf("detect labels: %w", err)
	}

	var names []string
	for _, l := range out.Labels {
		if l.Name == nil {
			continue
		}
		name := strings.TrimSpace(*l.Name)
		if name == "" || genericLabels[strings.ToLower(name)] {
			continue
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return analysisResult{Foods: []FoodItem{}}, errNoFoodsRecognized
	}

	textReq := req
	textReq.InputType = inputText
	textReq.Input = "A photo of a single meal showing: " + strings.Join(names, ", ") +
		". Assume one typical serving of each item."
	result, err := v.text.Analyze(ctx, textReq)
	if err != nil {
		return result, err
	}
	result.Warnings = append(result.Warnings, "Estimated from photo labels; portions are approximate")
	return result, nil
}
