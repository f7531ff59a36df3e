package display

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/govpipe/errors"
)

// ShouldOutputJSON determines if a command should output JSON based on flags
func ShouldOutputJSON(cmd *cobra.Command) bool {
	if cmd == nil {
		return false
	}

	// Explicit --json on the command wins
	if cmd.Flags().Changed("json") {
		jsonFlag, _ := cmd.Flags().GetBool("json")
		return jsonFlag
	}

	// Global --json flag
	if globalFlag, _ := cmd.Root().PersistentFlags().GetBool("json"); globalFlag {
		return true
	}
	return false
}

// MarshalJSON marshals with two-space indentation
func MarshalJSON(v interface{}) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

// OutputJSON marshals and prints JSON to stdout
func OutputJSON(v interface{}) error {
	return WriteJSON(os.Stdout, v)
}

// WriteJSON marshals and writes JSON followed by a newline
func WriteJSON(w io.Writer, v interface{}) error {
	data, err := MarshalJSON(v)
	if err != nil {
		return errors.Wrap(err, "failed to marshal JSON")
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
