package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pribylovaa/drrm-datacore/internal/models"
	"github.com/pribylovaa/drrm-datacore/internal/seed"
)

// NewSeedCommand печатает встроенный набор данных seeded-режима.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	var collection string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Print the built-in dataset used when no store is connected",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := seed.Load()
			if err != nil {
				return err
			}

			var out any = ds
			if collection != "" {
				items, err := pick(ds, models.Entity(collection))
				if err != nil {
					return err
				}
				out = items
			}

			return write(cmd.OutOrStdout(), rootOpts.Format, out)
		},
	}

	cmd.Flags().StringVarP(&collection, "collection", "c", "", "only this collection (news|services|incident_reports|gallery)")

	return cmd
}

func pick(ds seed.Dataset, e models.Entity) (any, error) {
	switch e {
	case models.EntityNews:
		return seed.Items[models.NewsItem](ds), nil
	case models.EntityServices:
		return seed.Items[models.Service](ds), nil
	case models.EntityIncidents:
		return seed.Items[models.IncidentReport](ds), nil
	case models.EntityGallery:
		return seed.Items[models.GalleryItem](ds), nil
	default:
		return nil, fmt.Errorf("unknown collection %q", e)
	}
}

// write выводит v в формате json (с отступами) или text (YAML).
func write(w io.Writer, format string, v any) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}

	return enc.Close()
}
