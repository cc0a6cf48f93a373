package main

// bodyTypeAdvice is the guidance card shown for a body type.
type bodyTypeAdvice struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tips        []string `json:"tips"`
}

var bodyTypeAdviceTable = map[BodyType]bodyTypeAdvice{
	BodyTypeApple: {
		Title:       "Apple type",
		Description: "Fat tends to collect around the abdomen, a pattern associated with insulin resistance.",
		Tips: []string{
			"Include quality protein at every meal",
			"Cut back on refined carbohydrates and sugar",
			"Add healthy fats such as avocado, nuts and olive oil",
			"Do strength training regularly",
			"Manage stress; high cortisol favors abdominal fat",
			"Consider intermittent fasting with professional guidance",
		},
	},
	BodyTypePear: {
		Title:       "Pear type",
		Description: "Fat tends to collect around the hips and thighs, a pattern associated with estrogen dominance.",
		Tips: []string{
			"Eat more fiber, especially cruciferous vegetables",
			"Include broccoli, kale and cauliflower",
			"Limit exposure to xenoestrogens from plastics and chemicals",
			"Reduce dairy and processed meats",
			"Do cardiovascular exercise",
			"Eat foods rich in omega-3",
		},
	},
	BodyTypeMixed: {
		Title:       "Mixed type",
		Description: "Body fat is evenly distributed. Keep healthy habits to support hormonal balance.",
		Tips: []string{
			"Keep a balanced and varied diet",
			"Combine aerobic and strength training",
			"Prefer whole, unprocessed foods",
			"Stay well hydrated",
			"Sleep 7-9 hours a night",
			"Manage stress with relaxation techniques",
		},
	},
}

// adviceFor returns the guidance card for t, or nil for an unknown type.
func adviceFor(t BodyType) *bodyTypeAdvice {
	a, ok := bodyTypeAdviceTable[t]
	if !ok {
		return nil
	}
	return &a
}
