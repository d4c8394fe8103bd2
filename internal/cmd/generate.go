package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/jnieblas/openai-response-api-demo/internal/config"
	"github.com/jnieblas/openai-response-api-demo/internal/logger"
	"github.com/jnieblas/openai-response-api-demo/internal/responses"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type generateFlags struct {
	formatType   string
	style        string
	tone         string
	length       string
	language     string
	customFields map[string]string

	model       string
	temperature float64
	topP        float64
	effort      string
	verbosity   string
	maxTokens   int

	tools        []string
	toolsFile    string
	toolChoice   string
	previousID   string
	apiKey       string
	instructions bool
	jsonOut      bool
	verbose      bool
}

func init() {
	rootCmd.AddCommand(newGenerateCmd())
}

func newGenerateCmd() *cobra.Command {
	var flags generateFlags

	cmd := &cobra.Command{
		Use:   "generate [prompt]",
		Short: "Generate one response from the command line",
		Long: `Generate sends a single prompt to the Responses API and prints the
normalized text. The prompt is read from the arguments, or from stdin when
no arguments are given.`,
		Example: `  responses-demo generate --type email --tone polite "Decline Friday's meeting"
  responses-demo generate --model gpt-5 --effort high --tool web_search_preview "Summarize today's AI news"
  echo "Thank Ana for the gift" | responses-demo generate --type message --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, &flags, args)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.formatType, "type", "t", "response", "format type: "+strings.Join(responses.FormatTypes, ", "))
	f.StringVar(&flags.style, "style", "", "format style: "+strings.Join(responses.FormatStyles, ", "))
	f.StringVar(&flags.tone, "tone", "", "format tone: "+strings.Join(responses.FormatTones, ", "))
	f.StringVar(&flags.length, "length", "", "advisory length: "+strings.Join(responses.FormatLengths, ", "))
	f.StringVar(&flags.language, "language", "", "response language (default en)")
	f.StringToStringVar(&flags.customFields, "field", nil, "extra format requirement as key=value, repeatable")

	f.StringVarP(&flags.model, "model", "m", "", "model name (default from config)")
	f.Float64Var(&flags.temperature, "temperature", 0.7, "sampling temperature 0-2 (sampling models)")
	f.Float64Var(&flags.topP, "top-p", 1.0, "nucleus sampling 0-1 (sampling models)")
	f.StringVar(&flags.effort, "effort", "", "reasoning effort: low, medium, high (reasoning models)")
	f.StringVar(&flags.verbosity, "verbosity", "", "output verbosity: low, medium, high (reasoning models)")
	f.IntVar(&flags.maxTokens, "max-output-tokens", 0, "cap on generated tokens")

	f.StringSliceVar(&flags.tools, "tool", nil, "hosted tool type, repeatable")
	f.StringVar(&flags.toolsFile, "tools-file", "", "JSON file holding a list of tool definitions")
	f.StringVar(&flags.toolChoice, "tool-choice", "", "auto, none, required, or a function name")
	f.StringVar(&flags.previousID, "previous-response-id", "", "continue from an earlier response")
	f.StringVar(&flags.apiKey, "api-key", "", "OpenAI API key (default $"+responses.APIKeyEnv+")")
	f.BoolVar(&flags.instructions, "instructions", false, "send the format as model instructions")
	f.BoolVar(&flags.jsonOut, "json", false, "print the full normalized result as JSON")
	f.BoolVarP(&flags.verbose, "verbose", "v", false, "log request details to stderr")
	return cmd
}

func runGenerate(cmd *cobra.Command, flags *generateFlags, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := zap.NewNop()
	if flags.verbose {
		if log, err = logger.NewDevelopment(); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		defer log.Sync()
	}

	prompt, err := readPrompt(args)
	if err != nil {
		return err
	}

	req, err := buildGenerateRequest(cmd, flags, cfg, prompt)
	if err != nil {
		return err
	}

	apiKey := flags.apiKey
	if apiKey == "" {
		apiKey = cfg.OpenAI.APIKey
	}
	client, err := responses.New(
		responses.WithAPIKey(apiKey),
		responses.WithBaseURL(cfg.OpenAI.BaseURL),
		responses.WithTimeout(cfg.OpenAI.Timeout),
		responses.WithMaxRetries(cfg.OpenAI.MaxRetries),
		responses.WithUserAgent(cfg.OpenAI.UserAgent),
		responses.WithDefaultModel(cfg.Defaults.Model),
		responses.WithFormatInstructions(flags.instructions || cfg.OpenAI.FormatInstructions),
		responses.WithLogger(log),
	)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	res, err := client.Generate(ctx, req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if flags.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Fprintln(out, res.Content())
	usage := res.Usage()
	fmt.Fprintf(cmd.ErrOrStderr(), "\n[%s] id=%s tokens=%d (in %d, out %d)",
		res.Model(), res.ID(), usage.TotalTokens, usage.PromptTokens, usage.CompletionTokens)
	if calls := res.ToolCalls(); len(calls) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), " tool_calls=%d", len(calls))
	}
	fmt.Fprintln(cmd.ErrOrStderr())
	return nil
}

func readPrompt(args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := readAllStdin()
	if err != nil {
		return "", fmt.Errorf("failed to read prompt from stdin: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", fmt.Errorf("a prompt is required")
	}
	return prompt, nil
}

// readAllStdin reads piped input; an interactive terminal yields nothing
func readAllStdin() ([]byte, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return nil, err
	}
	if stat.Mode()&os.ModeCharDevice != 0 {
		return nil, nil
	}
	return io.ReadAll(os.Stdin)
}

// buildGenerateRequest maps the flags to a client request. Sampling flags
// are sent only when given or when the model takes them.
func buildGenerateRequest(cmd *cobra.Command, flags *generateFlags, cfg *config.Config, prompt string) (responses.GenerateRequest, error) {
	f := cmd.Flags()
	req := responses.GenerateRequest{
		Prompt: prompt,
		Model:  flags.model,
		Format: responses.ResponseFormat{
			Type:     flags.formatType,
			Style:    flags.style,
			Tone:     flags.tone,
			Length:   flags.length,
			Language: flags.language,
		},
		PreviousResponseID: flags.previousID,
		MaxOutputTokens:    flags.maxTokens,
	}
	if req.Model == "" {
		req.Model = cfg.Defaults.Model
	}
	if req.MaxOutputTokens == 0 {
		req.MaxOutputTokens = cfg.Defaults.MaxOutputTokens
	}
	if len(flags.customFields) > 0 {
		req.Format.CustomFields = make(map[string]any, len(flags.customFields))
		for k, v := range flags.customFields {
			req.Format.CustomFields[k] = v
		}
	}

	switch {
	case f.Changed("temperature") || f.Changed("top-p"):
		p := responses.SamplingParams{Temperature: cfg.Defaults.Temperature, TopP: cfg.Defaults.TopP}
		if f.Changed("temperature") {
			p.Temperature = flags.temperature
		}
		if f.Changed("top-p") {
			p.TopP = flags.topP
		}
		req.Parameters = p
	case flags.effort != "" || flags.verbosity != "":
		p := responses.ReasoningParams{Effort: cfg.Defaults.Effort, Verbosity: cfg.Defaults.Verbosity}
		if flags.effort != "" {
			p.Effort = flags.effort
		}
		if flags.verbosity != "" {
			p.Verbosity = flags.verbosity
		}
		req.Parameters = p
	case responses.FamilyOf(req.Model) == responses.FamilyReasoning:
		req.Parameters = responses.ReasoningParams{Effort: cfg.Defaults.Effort, Verbosity: cfg.Defaults.Verbosity}
	default:
		req.Parameters = responses.SamplingParams{Temperature: cfg.Defaults.Temperature, TopP: cfg.Defaults.TopP}
	}

	var items []any
	for _, t := range flags.tools {
		items = append(items, responses.HostedTool(strings.TrimSpace(t)))
	}
	if flags.toolsFile != "" {
		data, err := os.ReadFile(flags.toolsFile)
		if err != nil {
			return req, fmt.Errorf("failed to read tools file: %w", err)
		}
		var defs []map[string]any
		if err := json.Unmarshal(data, &defs); err != nil {
			return req, fmt.Errorf("tools file must hold a JSON list of tool objects: %w", err)
		}
		for _, d := range defs {
			items = append(items, d)
		}
	}
	if len(items) > 0 {
		tools, err := responses.NormalizeTools(items)
		if err != nil {
			return req, err
		}
		req.Tools = tools
	}

	if c := strings.TrimSpace(flags.toolChoice); c != "" {
		switch strings.ToLower(c) {
		case responses.ToolChoiceModeAuto:
			req.ToolChoice = responses.ToolChoiceAuto
		case responses.ToolChoiceModeNone:
			req.ToolChoice = responses.ToolChoiceNone
		case responses.ToolChoiceModeRequired:
			req.ToolChoice = responses.ToolChoiceRequired
		default:
			req.ToolChoice = responses.ToolChoiceFunction(c)
		}
	}
	return req, nil
}
