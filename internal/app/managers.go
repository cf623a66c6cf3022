package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/c9install/internal/output"
)

var managersCmd = &cobra.Command{
	Use:   "managers",
	Short: "List package managers and their aliases",
	Long: `List the package managers manifest tasks can name, with their aliases.

Extra aliases are read from <dir>/aliases, one "alias=manager" per line.`,
	Example: `  c9install managers`,
	RunE:    runManagers,
}

func runManagers(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	reg, err := buildRegistry(cfg, logger)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), output.RenderManagerTable(reg.Entries()))
	return nil
}
