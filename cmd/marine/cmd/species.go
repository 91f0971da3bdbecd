package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ssargent/marinedb/pkg/marine"
)

func bindSpeciesFlags(cmd *cobra.Command, p *marine.MarineSpeciesPayload) {
	f := cmd.Flags()
	f.StringVar(&p.Name, "name", "", "Common name")
	f.StringVar(&p.Habitat, "habitat", "", "Habitat")
	f.Uint64Var(&p.TaxonomyID, "taxonomy-id", 0, "Id of the taxonomy this species belongs to (not checked)")
	f.StringVar(&p.ConservationStatus, "status", "", "Conservation status, e.g. Endangered")
}

func newSpeciesCmd(a *app) *cobra.Command {
	speciesCmd := &cobra.Command{
		Use:   "species",
		Short: "Manage marine species records",
	}

	var createPayload marine.MarineSpeciesPayload
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a marine species owned by --as",
		Long: `Create a marine species record.

Example:
  marine species create --as alice --name "Blue Whale" --habitat Ocean \
    --taxonomy-id 1 --status Endangered`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := a.principal()
			if err != nil {
				return err
			}
			return a.withRegistry(func(reg *marine.Registry) error {
				s, err := reg.Species.Create(createPayload, caller)
				if err != nil {
					return err
				}
				return printJSON(cmd, s)
			})
		},
	}
	bindSpeciesFlags(createCmd, &createPayload)

	getCmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a marine species",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.withRegistry(func(reg *marine.Registry) error {
				s, err := reg.Species.Get(id)
				if err != nil {
					return err
				}
				return printJSON(cmd, s)
			})
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List every marine species in id order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRegistry(func(reg *marine.Registry) error {
				all, err := reg.Species.List()
				if err != nil {
					return err
				}
				return printJSON(cmd, all)
			})
		},
	}

	filterCmd := &cobra.Command{
		Use:   "filter <status>",
		Short: "List species whose conservation status matches, ignoring case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRegistry(func(reg *marine.Registry) error {
				matched, err := reg.Species.FilterByStatus(args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, matched)
			})
		},
	}

	var updatePayload marine.MarineSpeciesPayload
	updateCmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Replace every field of a marine species you own",
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
				s, err := reg.Species.Update(id, updatePayload, caller)
				if err != nil {
					return err
				}
				return printJSON(cmd, s)
			})
		},
	}
	bindSpeciesFlags(updateCmd, &updatePayload)

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a marine species you own",
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
				s, err := reg.Species.Delete(id, caller)
				if err != nil {
					return err
				}
				return printJSON(cmd, s)
			})
		},
	}

	speciesCmd.AddCommand(createCmd, getCmd, listCmd, filterCmd, updateCmd, deleteCmd)
	return speciesCmd
}
