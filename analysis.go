package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

/* ─── Request / Result types ─────────────────────────────────────────── */

type analysisInputType string

const (
	inputText    analysisInputType = "text"
	inputImage   analysisInputType = "image"
	inputBarcode analysisInputType = "barcode"
)

// analysisRequest is the body of POST /api/meals/analyze. Profile and BodyType
// are filled in from the session for personalization, never from the client.
type analysisRequest struct {
	Input     string            `json:"input"`
	InputType analysisInputType `json:"input_type"`
	Profile   *UserProfile      `json:"-"`
	BodyType  *BodyType         `json:"-"`
}

// analysisResult is what every analyzer returns. Confidence is in [0,1] and
// is only displayed, never used for decisions.
type analysisResult struct {
	Foods         []FoodItem `json:"foods"`
	TotalCalories float64    `json:"total_calories"`
	TotalProteinG float64    `json:"total_protein_g"`
	TotalCarbsG   float64    `json:"total_carbs_g"`
	TotalFatG     float64    `json:"total_fat_g"`
	Analysis      string     `json:"analysis"`
	Suggestions   []string   `json:"suggestions"`
	Warnings      []string   `json:"warnings,omitempty"`
	Confidence    float64    `json:"confidence"`
}

// foodAnalyzer turns text, an image or a barcode into foods. Failures and
// empty results are errors; callers create no meal from them.
type foodAnalyzer interface {
	Analyze(ctx context.Context, req analysisRequest) (analysisResult, error)
}

// finalizeResult assigns missing ids, drops unknown categories, clamps
// confidence and computes totals. An empty food list is errNoFoodsRecognized.
func finalizeResult(r analysisResult) (analysisResult, error) {
	if len(r.Foods) == 0 {
		return analysisResult{Foods: []FoodItem{}}, errNoFoodsRecognized
	}
	r.TotalCalories, r.TotalProteinG, r.TotalCarbsG, r.TotalFatG = 0, 0, 0, 0
	for i := range r.Foods {
		f := &r.Foods[i]
		if f.ID == "" {
			f.ID = uuid.NewString()
		}
		if f.Category != nil && !validFoodCategories[*f.Category] {
			f.Category = nil
		}
		r.TotalCalories += f.Calories
		r.TotalProteinG += f.ProteinG
		r.TotalCarbsG += f.CarbsG
		r.TotalFatG += f.FatG
	}
	r.Confidence = math.Max(0, math.Min(1, r.Confidence))
	if r.Suggestions == nil {
		r.Suggestions = []string{}
	}
	return r, nil
}

/* ─── Router ─────────────────────────────────────────────────────────── */

// analysisRouter dispatches by input type. A nil analyzer for a type means
// that input is not configured.
type analysisRouter struct {
	text    foodAnalyzer
	image   foodAnalyzer
	barcode foodAnalyzer
}

var errAnalyzerUnavailable = errors.New("analyzer not configured")

func (r *analysisRouter) Analyze(ctx context.Context, req analysisRequest) (analysisResult, error) {
	if strings.TrimSpace(req.Input) == "" {
		return analysisResult{}, invalid("input", "is required")
	}
	var a foodAnalyzer
	switch req.InputType {
	case inputText, "":
		a = r.text
	case inputImage:
		a = r.image
	case inputBarcode:
		a = r.barcode
	default:
		return analysisResult{}, invalid("input_type", fmt.Sprintf("unknown value %q", req.InputType))
	}
	if a == nil {
		return analysisResult{}, fmt.Errorf("%s input: %w", req.InputType, errAnalyzerUnavailable)
	}
	return a.Analyze(ctx, req)
}

/* ─── OpenAI prompt constants ────────────────────────────────────────── */

const mealSystemPrompt = `You are a nutrition assistant. Identify every food in the user's meal description and return a JSON object with:
- "foods" (array). Each food has:
  - "name" (string, cleaned up title case)
  - "portion" (string, e.g. "1 cup", "150 g")
  - "portion_weight_g" (number, estimated grams)
  - "calories" (number, total for the portion)
  - "protein_g", "carbs_g", "fat_g", "fiber_g" (numbers, totals for the portion)
  - "sodium_mg" (number)
  - "glycemic_index" (number 0-100, omit when not applicable)
  - "category" (one of: protein, carbs, vegetables, fruits, dairy, fats, beverages, snacks, processed)
- "analysis" (string, two or three sentences about the meal's nutritional quality)
- "suggestions" (array of short strings)
- "warnings" (array of short strings, may be empty)
- "confidence" (number 0-1: 1=exact known nutritional data, 0.5=reasonable estimate, 0.2=rough guess)

Always provide your best estimate. Only return {"error": "unrecognized"} if the input is not food at all.
Return only valid JSON, no explanation.`

// mealPersonalizationTemplate is appended when the user has a profile.
const mealPersonalizationTemplate = `

The user's goal is %s and their body fat distribution is %s. Tailor "analysis" and "suggestions" to that goal.`

/* ─── OpenAI chat completions ────────────────────────────────────────── */

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatFormat struct {
	Type string `json:"type"`
}

// openAIRequest is the chat completions request body. Temperature 0 and a
// json_object format keep the reply parseable.
type openAIRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat chatFormat    `json:"response_format"`
}

type openAIResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// openAIAnalyzer estimates foods from a free-text meal description.
type openAIAnalyzer struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

func newOpenAIAnalyzer(apiKey, baseURL, model string) *openAIAnalyzer {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &openAIAnalyzer{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// post sends in as JSON to path and decodes a 2xx reply into out.
func (a *openAIAnalyzer) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode openai request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create openai request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute openai request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read openai response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("openai request failed with status %d: %s", resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode openai response: %w", err)
	}
	return nil
}

// complete asks the model for a JSON reply to the user message and returns
// the reply's content.
func (a *openAIAnalyzer) complete(ctx context.Context, system, user string) (string, error) {
	if a.apiKey == "" {
		return "", fmt.Errorf("openai key not configured: %w", errAnalyzerUnavailable)
	}
	var out openAIResponse
	err := a.post(ctx, "/v1/chat/completions", openAIRequest{
		Model:          a.model,
		Messages:       []chatMessage{{Role: "system", Content: system}, {Role: "user", Content: user}},
		ResponseFormat: chatFormat{Type: "json_object"},
	}, &out)
	if err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}

// buildMealPrompt personalizes the system prompt with the profile's goal and
// body type when both are known.
func buildMealPrompt(req analysisRequest) string {
	if req.Profile == nil || req.BodyType == nil {
		return mealSystemPrompt
	}
	return mealSystemPrompt + fmt.Sprintf(mealPersonalizationTemplate, req.Profile.Goal, *req.BodyType)
}

// Analyze sends the description to OpenAI and parses the foods it returns.
func (a *openAIAnalyzer) Analyze(ctx context.Context, req analysisRequest) (analysisResult, error) {
	content, err := a.complete(ctx, buildMealPrompt(req), req.Input)
	if err != nil {
		return analysisResult{}, fmt.Errorf("openai: %w", err)
	}

	// {"error": ...} means the input was not food.
	var errorResp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(content), &errorResp); err != nil {
		return analysisResult{}, fmt.Errorf("parse openai response: %w", err)
	}
	if errorResp.Error != "" {
		return analysisResult{Foods: []FoodItem{}}, errNoFoodsRecognized
	}

	var result analysisResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return analysisResult{}, fmt.Errorf("parse openai foods: %w", err)
	}
	return finalizeResult(result)
}

/* ─── Barcode ────────────────────────────────────────────────────────── */

// barcodeAnalyzer resolves a barcode to a single product.
type barcodeAnalyzer struct {
	off *openFoodFacts
}

func (b *barcodeAnalyzer) Analyze(ctx context.Context, req analysisRequest) (analysisResult, error) {
	food, err := b.off.LookupBarcode(ctx, req.Input)
	if errors.Is(err, errNotFound) {
		return analysisResult{Foods: []FoodItem{}}, errNoFoodsRecognized
	}
	if err != nil {
		return analysisResult{}, err
	}
	var goal Goal
	if req.Profile != nil {
		goal = req.Profile.Goal
	}
	result := analysisResult{Foods: []FoodItem{food}, Confidence: 0.95}
	result, err = finalizeResult(result)
	if err != nil {
		return result, err
	}
	result.Analysis, result.Suggestions, result.Warnings = reviewFoods(result.Foods, result.TotalCalories, goal)
	return result, nil
}

// reviewFoods produces the commentary for results that come from a product
// database rather than a language model.
func reviewFoods(foods []FoodItem, totalCalories float64, goal Goal) (string, []string, []string) {
	var hasProtein, hasVeggies, lowGI, highGI = false, false, true, false
	var fiber float64
	for _, f := range foods {
		if f.ProteinG > 10 {
			hasProtein = true
		}
		if f.Category != nil && *f.Category == "vegetables" {
			hasVeggies = true
		}
		if f.FiberG != nil {
			fiber += *f.FiberG
		}
		if f.GlycemicIndex != nil {
			if *f.GlycemicIndex >= 55 {
				lowGI = false
			}
			if *f.GlycemicIndex > 70 {
				highGI = true
			}
		}
	}

	analysis := fmt.Sprintf("%.0f calories.", math.Round(totalCalories))
	if hasProtein {
		analysis += " Good source of protein."
	}
	if hasVeggies {
		analysis += " Includes vegetables."
	}
	if lowGI {
		analysis += " Low glycemic load."
	}

	suggestions := []string{}
	if !hasProtein {
		suggestions = append(suggestions, "Add a protein source such as chicken, fish or eggs")
	}
	if !hasVeggies {
		suggestions = append(suggestions, "Add vegetables for fiber and micronutrients")
	}
	if fiber <= 5 {
		suggestions = append(suggestions, "Increase fiber with vegetables, legumes or whole grains")
	}
	if goal == GoalWeightLoss {
		suggestions = append(suggestions, "For weight loss, prioritize protein and vegetables")
	}

	var warnings []string
	if totalCalories > 800 {
		warnings = append(warnings, "Calorie-dense meal; consider smaller portions if you are in a deficit")
	}
	if highGI {
		warnings = append(warnings, "High glycemic index foods can cause insulin spikes")
	}
	return analysis, suggestions, warnings
}
