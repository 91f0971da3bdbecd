package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ssargent/marinedb/pkg/marine"
)

func parseID(arg string) (uint64, error) {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}

func bindTaxonomyFlags(cmd *cobra.Command, p *marine.TaxonomyPayload) {
	f := cmd.Flags()
	f.StringVar(&p.Kingdom, "kingdom", "", "Kingdom")
	f.StringVar(&p.Phylum, "phylum", "", "Phylum")
	f.StringVar(&p.Class, "class", "", "Class")
	f.StringVar(&p.Order, "order", "", "Order")
	f.StringVar(&p.Family, "family", "", "Family")
	f.StringVar(&p.Genus, "genus", "", "Genus")
	f.StringVar(&p.Species, "species", "", "Species")
}

func newTaxonomyCmd(a *app) *cobra.Command {
	taxonomyCmd := &cobra.Command{
		Use:     "taxonomy",
		Aliases: []string{"taxonomies", "tax"},
		Short:   "Manage taxonomy records",
	}

	var createPayload marine.TaxonomyPayload
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a taxonomy owned by --as",
		Long: `Create a taxonomy record. Every rank is required.

Example:
  marine taxonomy create --as alice --kingdom Animalia --phylum Chordata \
    --class Mammalia --order Cetacea --family Balaenopteridae \
    --genus Balaenoptera --species musculus`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := a.principal()
			if err != nil {
				return err
			}
			return a.withRegistry(func(reg *marine.Registry) error {
				t, err := reg.Taxonomies.Create(createPayload, caller)
				if err != nil {
					return err
				}
				return printJSON(cmd, t)
			})
		},
	}
	bindTaxonomyFlags(createCmd, &createPayload)

	getCmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a taxonomy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.withRegistry(func(reg *marine.Registry) error {
				t, err := reg.Taxonomies.Get(id)
				if err != nil {
					return err
				}
				return printJSON(cmd, t)
			})
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List every taxonomy in id order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRegistry(func(reg *marine.Registry) error {
				all, err := reg.Taxonomies.List()
				if err != nil {
					return err
				}
				return printJSON(cmd, all)
			})
		},
	}

	var updatePayload marine.TaxonomyPayload
	updateCmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Replace every rank of a taxonomy you own",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			caller, err := a.principal()
			if err != nil {
				return err
			}
			return a.withRegistry(func(reg *marine.Registry) error {
				t, err := reg.Taxonomies.Update(id, updatePayload, caller)
				if err != nil {
					return err
				}
				return printJSON(cmd, t)
			})
		},
	}
	bindTaxonomyFlags(updateCmd, &updatePayload)

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a taxonomy you own",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			caller, err := a.principal()
			if err != nil {
				return err
			}
			return a.withRegistry(func(reg *marine.Registry) error {
				t, err := reg.Taxonomies.Delete(id, caller)
				if err != nil {
					return err
				}
				return printJSON(cmd, t)
			})
		},
	}

	taxonomyCmd.AddCommand(createCmd, getCmd, listCmd, updateCmd, deleteCmd)
	return taxonomyCmd
}
