package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/apresai/readcast/internal/tts"
)

var listVoicesCmd = &cobra.Command{
	Use:   "list-voices [provider]",
	Short: "List available voices for the TTS providers",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runListVoices,
}

func init() {
	rootCmd.AddCommand(listVoicesCmd)
}

func runListVoices(cmd *cobra.Command, args []string) error {
	providers := tts.Providers
	if len(args) == 1 {
		providers = []string{args[0]}
	}

	fmt.Println("\nAvailable voices:")

	for _, name := range providers {
		voices, err := tts.AvailableVoices(name)
		if err != nil {
			return err
		}

		fmt.Printf("\n  %s\n", strings.ToUpper(name))
		fmt.Printf("  %s\n", strings.Repeat("─", 50))
		fmt.Printf("  %-28s %-12s %-8s %s\n", "ID", "NAME", "GENDER", "DESCRIPTION")
		for _, v := range voices {
			def := ""
			if v.Default {
				def = fmt.Sprintf(" (default %s)", v.Gender)
			}
			fmt.Printf("  %-28s %-12s %-8s %s%s\n", v.ID, v.Name, v.Gender, v.Description, def)
		}
	}
	fmt.Println()
	return nil
}
