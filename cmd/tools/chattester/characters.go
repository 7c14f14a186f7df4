package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/z-companion/backend/internal/model/persona"
)

func newCharactersCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:          "characters",
		Short:        "list the companions offered by the server",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			personas, err := fetchCharacters(ctx, opts.server)
			if err != nil {
				return err
			}
			renderCharacters(cmd.OutOrStdout(), personas)
			return nil
		},
	}
}

func fetchCharacters(ctx context.Context, server string) ([]persona.Persona, error) {
	base, err := parseServer(server)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.String()+"/api/characters", nil)
	if err != nil {
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list characters: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list characters: unexpected status %s", resp.Status)
	}

	var personas []persona.Persona
	if err := sonic.ConfigDefault.NewDecoder(resp.Body).Decode(&personas); err != nil {
		return nil, fmt.Errorf("decode characters: %w", err)
	}
	return personas, nil
}

func renderCharacters(w io.Writer, personas []persona.Persona) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Name", "Role", "Title"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetTablePadding("\t")

	for _, p := range personas {
		table.Append([]string{string(p.ID), p.Name, p.Role, p.Title})
	}
	table.Render()
}
