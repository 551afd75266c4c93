package openai

import (
	"encoding/json"

	goopenai "github.com/sashabaranov/go-openai"

	"concierge-api/internal/domain"
)

const CaptureLeadFunction = "captureLead"

// captureLeadParameters is the JSON schema of the captureLead arguments.
var captureLeadParameters = json.RawMessage(`{
	"type":"object",
	"properties":{
		"name":{"type":"string"},
		"email":{"type":"string","format":"email"},
		"topic":{"type":"string"}
	},
	"required":["name","email"]
}`)

// CaptureLeadTool is the only tool offered to the model. Treat as read-only.
var CaptureLeadTool = goopenai.Tool{
	Type: goopenai.ToolTypeFunction,
	Function: &goopenai.FunctionDefinition{
		Name:        CaptureLeadFunction,
		Description: "Capture visitor lead info (name, email, topic). Call only after providing value.",
		Parameters:  captureLeadParameters,
	},
}

// chatRequest mirrors goopenai.ChatCompletionRequest for the fields sent here.
// Messages keep an explicit content key: goopenai.ChatCompletionMessage omits
// empty content, which the API rejects.
type chatRequest struct {
	Model      string               `json:"model"`
	Messages   []domain.ChatMessage `json:"messages"`
	Tools      []goopenai.Tool      `json:"tools"`
	ToolChoice string               `json:"tool_choice"`
	Stream     bool                 `json:"stream"`
}

func newChatRequest(model string, messages []domain.ChatMessage) chatRequest {
	if messages == nil {
		messages = []domain.ChatMessage{}
	}
	return chatRequest{
		Model:      model,
		Messages:   messages,
		Tools:      []goopenai.Tool{CaptureLeadTool},
		ToolChoice: "auto",
		Stream:     true,
	}
}
