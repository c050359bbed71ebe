package pipeline

type Model struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

var Models = []Model{
	{ID: "gpt-4o", Name: "GPT-4o (Recommended)", Description: "Most capable model"},
	{ID: "gpt-4o-mini", Name: "GPT-4o Mini", Description: "Faster and more cost-effective"},
	{ID: "o1", Name: "O1", Description: "Advanced reasoning model"},
	{ID: "o1-mini", Name: "O1 Mini", Description: "Fast reasoning model"},
	{ID: "o3-mini", Name: "O3 Mini", Description: "Latest reasoning model"},
	{ID: "gpt-5", Name: "GPT-5", Description: "Next generation model"},
	{ID: "gpt-4-turbo", Name: "GPT-4 Turbo", Description: "High capability"},
	{ID: "gpt-4", Name: "GPT-4", Description: "Powerful language model"},
	{ID: "gemini-2.0-flash", Name: "Gemini 2.0 Flash", Description: "Google model, needs GEMINI_API_KEY"},
}
