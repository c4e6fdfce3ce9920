package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/devashis/prajna/internal/model"
)

// maxToolRounds bounds the generate / call-tools / resume loop so a confused
// model cannot spin forever.
const maxToolRounds = 4

type geminiConfig struct {
	APIKey string `json:"api_key"`
}

type geminiProvider struct {
	apiKey string
}

func (p *geminiProvider) Name() string {
	return "gemini"
}

func (p *geminiProvider) GenerateStream(ctx context.Context, modelName string, req *GenerateRequest, onToken TokenFunc) (string, error) {
	if p.apiKey == "" {
		return "", ErrUnavailable
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  p.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", err
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](req.Temperature),
	}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if len(req.Tools) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: buildDeclarations(req.Tools)}}
	}

	contents := buildContents(req.Messages)
	var sb strings.Builder

	for round := 0; round < maxToolRounds; round++ {
		var calls []*genai.FunctionCall
		var modelParts []*genai.Part

		for resp, err := range client.Models.GenerateContentStream(ctx, modelName, contents, config) {
			if err != nil {
				return sb.String(), err
			}
			for _, cand := range resp.Candidates {
				if cand.Content == nil {
					continue
				}
				for _, part := range cand.Content.Parts {
					if part.Text != "" {
						sb.WriteString(part.Text)
						modelParts = append(modelParts, &genai.Part{Text: part.Text})
						if onToken != nil {
							if err := onToken(part.Text); err != nil {
								return sb.String(), err
							}
						}
					}
					if part.FunctionCall != nil {
						calls = append(calls, part.FunctionCall)
						modelParts = append(modelParts, &genai.Part{FunctionCall: part.FunctionCall})
					}
				}
			}
		}

		if len(calls) == 0 {
			return sb.String(), nil
		}

		contents = append(contents, &genai.Content{Role: "model", Parts: modelParts})
		responseParts := make([]*genai.Part, 0, len(calls))
		for _, call := range calls {
			result := dispatch(ctx, req.Tools, call.Name, call.Args)
			responseParts = append(responseParts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					ID:       call.ID,
					Name:     call.Name,
					Response: result,
				},
			})
		}
		contents = append(contents, &genai.Content{Role: "user", Parts: responseParts})
	}
	return sb.String(), nil
}

func (p *geminiProvider) Embed(ctx context.Context, modelName string, text string, taskType string) ([]float32, error) {
	if p.apiKey == "" {
		return nil, ErrUnavailable
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  p.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	var config *genai.EmbedContentConfig
	if taskType != "" {
		config = &genai.EmbedContentConfig{TaskType: taskType}
	}
	resp, err := client.Models.EmbedContent(
		ctx,
		modelName,
		[]*genai.Content{{Parts: []*genai.Part{{Text: text}}}},
		config,
	)
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("no embedding values returned")
	}
	return resp.Embeddings[0].Values, nil
}

func buildContents(messages []model.ChatMessage) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		role := "user"
		if msg.Role == model.RoleAssistant {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: msg.Content}},
		})
	}
	return contents
}

func buildDeclarations(tools []Tool) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, tool := range tools {
		properties := make(map[string]*genai.Schema, len(tool.Params))
		var required []string
		for name, param := range tool.Params {
			schemaType := genai.TypeString
			if param.Type == "number" {
				schemaType = genai.TypeNumber
			}
			properties[name] = &genai.Schema{
				Type:        schemaType,
				Description: param.Description,
			}
			if param.Required {
				required = append(required, name)
			}
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: properties,
				Required:   required,
			},
		})
	}
	return decls
}

func createGeminiFactory(args interface{}) (IProvider, error) {
	cfg := &geminiConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	return &geminiProvider{apiKey: strings.TrimSpace(cfg.APIKey)}, nil
}

func init() {
	Register("gemini", createGeminiFactory)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("ai provider config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode ai provider config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode ai provider config: %w", err)
	}
	return nil
}
