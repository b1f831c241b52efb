package reasoner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/quizagent/pkg/llm"
	"github.com/papercomputeco/quizagent/pkg/sandbox"
)

// RunCodeTool is the name of the single capability offered to the model.
const RunCodeTool = "run_python"

// RunCodeSpec declares the code execution capability.
var RunCodeSpec = llm.ToolSpec{
	Name:        RunCodeTool,
	Description: "Executes Python code to perform data analysis, file reading, or calculations. The code has access to pandas, numpy, sklearn, etc. Always print the final result.",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"code": map[string]string{
				"type":        "string",
				"description": "The Python code to execute.",
			},
		},
		"required": []string{"code"},
	},
}

// RunCodeArguments are the arguments of a run_python invocation.
type RunCodeArguments struct {
	Code string `json:"code"`
}

// invoke executes one tool invocation and returns the tool-result text.
// Every failure is rendered as text so the model can correct itself.
func (e *Engine) invoke(ctx context.Context, call llm.ToolInvocation) (string, error) {
	if call.Name != RunCodeTool {
		e.logger.Warn("model called unknown tool", zap.String("tool", call.Name))
		return fmt.Sprintf("Error calling tool %s: unknown tool, the only available tool is %s", call.Name, RunCodeTool), nil
	}

	var args RunCodeArguments
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		e.logger.Warn("malformed tool arguments",
			zap.String("call_id", call.ID),
			zap.String("arguments", truncate(call.Arguments, 200)),
			zap.Error(err),
		)
		return fmt.Sprint("Error calling tool run_python: malformed arguments: ", err), nil
	}
	if strings.TrimSpace(args.Code) == "" {
		return "Error calling tool run_python: argument code is empty", nil
	}

	e.logger.Info("executing model code",
		zap.String("call_id", call.ID),
		zap.String("code_preview", truncate(strings.ReplaceAll(args.Code, "\n", " "), 120)),
	)

	outcome, err := e.executor.Execute(ctx, args.Code)
	if err != nil {
		var execErr *sandbox.ExecutionError
		if errors.As(err, &execErr) {
			e.logger.Error("code execution could not start", zap.Error(err))
			return execErr.Error(), nil
		}
		return "", err
	}

	output := outcome.Combined()
	if outcome.Truncated {
		output += "\n[output truncated]"
	}
	if outcome.TimedOut {
		output += fmt.Sprintf("\n[execution timed out after %s]", outcome.Duration.Round(time.Millisecond))
	}
	if output == "" {
		output = "(no output; print the values you want to see)"
	}

	e.logger.Debug("model code finished",
		zap.String("call_id", call.ID),
		zap.Int("exit_code", outcome.ExitCode),
		zap.Bool("timed_out", outcome.TimedOut),
		zap.Int("output_bytes", len(output)),
	)

	return output, nil
}
