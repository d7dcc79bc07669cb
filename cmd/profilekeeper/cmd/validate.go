package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/solatis/profilekeeper/internal/condition"
)

var validateCmd = &cobra.Command{
	Use:   "validate <condition>",
	Short: "Parse a condition, optionally evaluating it against a JSON record from stdin",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	src := args[0]

	if _, err := condition.Parse(src); err != nil {
		return err
	}

	stat, err := os.Stdin.Stat()
	if err == nil && (stat.Mode()&os.ModeCharDevice) == 0 {
		// Piped input: evaluate against the flattened record.
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read record: %w", err)
		}
		var tree map[string]any
		if err := json.Unmarshal(raw, &tree); err != nil {
			return fmt.Errorf("invalid JSON record: %w", err)
		}

		matched, err := condition.Evaluate(src, condition.Flatten(tree))
		if err != nil {
			return err
		}
		fmt.Println(matched)
		return nil
	}

	fmt.Println("ok")
	return nil
}
