package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/DoyleJ11/rodizio-backend/internal/config"
	"github.com/DoyleJ11/rodizio-backend/internal/engine"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type distribution struct {
	TeamA    []engine.Participant `json:"team_a"`
	TeamB    []engine.Participant `json:"team_b"`
	Leftover []engine.Participant `json:"leftover"`
}

func newDistributeCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "distribute",
		Short: "Split a JSON list of players into two balanced teams",
		Long: `Reads a JSON array of players ({"name": ..., "category": ...}) and prints
the two teams and the players left waiting, using the configured team and
round sizes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(viper.New(), cfgFile)
			if err != nil {
				return err
			}

			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read players: %w", err)
			}
			var players []engine.Participant
			if err := json.Unmarshal(data, &players); err != nil {
				return fmt.Errorf("decode players: %w", err)
			}

			// Players are registered like in a lobby, so a file with a
			// repeated id or an invalid name is rejected the same way.
			lim := cfg.Roster.Limits()
			roster := engine.NewEmptyState(lim)
			for _, p := range players {
				if p.ID == "" {
					p.ID = uuid.NewString()
				}
				_, next, err := engine.Apply(roster, engine.Command{Type: engine.CmdRegister, Participant: p})
				if err != nil {
					return fmt.Errorf("player %q: %w", p.Name, err)
				}
				roster = next
			}

			split := engine.Distribute(roster.Registered, lim)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(distribution{TeamA: split.TeamA, TeamB: split.TeamB, Leftover: split.Leftover})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file with the players")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
