package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kilianp07/rcpsched/core/instance"
)

var dataFormat string

var dataCmd = &cobra.Command{
	Use:   "data [instance]",
	Short: "Print an instance as parsed",
	Long:  "Print an instance as parsed, optionally converting it between the text, yaml and json formats.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "-"
		if len(args) == 1 {
			path = args[0]
		}
		format, err := instance.ParseFormat(dataFormat)
		if err != nil {
			return err
		}
		p, err := instance.LoadFile(path)
		if err != nil {
			return err
		}
		return instance.Write(cmd.OutOrStdout(), p, format)
	},
}

func init() {
	dataCmd.Flags().StringVar(&dataFormat, "format", "text", "output format: text, yaml or json")
	rootCmd.AddCommand(dataCmd)
}
