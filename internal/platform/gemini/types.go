package gemini

// promptData represents the data passed to the prompt template
type promptData struct {
	Tasks []string
}

// ResponseSchema is the JSON shape the model is asked to return.
type ResponseSchema struct {
	Tasks []TaskSchema `json:"tasks"`
}

// TaskSchema is one ranked task in the model answer.
type TaskSchema struct {
	// Title must match one of the submitted titles.
	Title     string  `json:"title"`
	Rationale string  `json:"rationale"`
	Urgency   float64 `json:"urgency"`
	Impact    float64 `json:"impact"`
}
