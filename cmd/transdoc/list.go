package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oukeidos/transdoc/internal/document"
	"github.com/oukeidos/transdoc/internal/language"
	"github.com/oukeidos/transdoc/internal/ollama"
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List supported languages, formats and local models",
		RunE: func(cmd *cobra.Command, args []string) error {
			runListLanguages(cmd)
			fmt.Fprintln(cmd.OutOrStdout())
			runListFormats(cmd)
			return nil
		},
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)

	cmd.AddCommand(
		newListLanguagesCmd(),
		newListFormatsCmd(),
		newListModelsCmd(),
	)
	return cmd
}

func newListLanguagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "languages",
		Short: "List supported languages",
		Run: func(cmd *cobra.Command, args []string) {
			runListLanguages(cmd)
		},
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}

func newListFormatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "formats",
		Short: "List supported document formats",
		Run: func(cmd *cobra.Command, args []string) {
			runListFormats(cmd)
		},
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}

func newListModelsCmd() *cobra.Command {
	var ollamaURL string
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List models installed on the local Ollama server",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := ollama.NewClient("", ollamaURL)
			models, err := client.ListModels(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Local Models:")
			for _, m := range models {
				fmt.Fprintf(cmd.OutOrStdout(), "  %-40s %.1f GB\n", m.Name, float64(m.Size)/1e9)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&ollamaURL, "ollama-url", "", "Local Ollama server address (default "+defaultOllamaURLLabel+")")
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}

func runListLanguages(cmd *cobra.Command) {
	langs := language.GetSupportedLanguages()
	fmt.Fprintln(cmd.OutOrStdout(), "Supported Languages:")
	for _, l := range langs {
		fmt.Fprintf(cmd.OutOrStdout(), "  %-35s [%s]\n", l.Name, l.ID)
	}
}

func runListFormats(cmd *cobra.Command) {
	fmt.Fprintln(cmd.OutOrStdout(), "Supported Formats:")
	for _, f := range document.SupportedFormats() {
		fmt.Fprintf(cmd.OutOrStdout(), "  %-12s %s\n", f.Name(), strings.Join(f.Extensions(), ", "))
	}
}
