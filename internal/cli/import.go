package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/eshaffer321/invoice-match-backend/internal/application/service"
	"github.com/eshaffer321/invoice-match-backend/internal/infrastructure/storage"
)

// ImportFile is the YAML layout accepted by the import command.
//
//	purchase_orders:
//	  - reference: PO-1
//	    vendor_id: acme
//	    lines:
//	      - description: Widgets
//	        amount_to_invoice: "100.00"
//	extractions:
//	  - id: ext-1
//	    vendor_id: acme
//	    goal_total: "100.00"
//	    po_references: [PO-1]
type ImportFile struct {
	PurchaseOrders []ImportPurchaseOrder `yaml:"purchase_orders"`
	Extractions    []ImportExtraction    `yaml:"extractions"`
}

// ImportPurchaseOrder is one purchase order in an import file.
type ImportPurchaseOrder struct {
	Reference string       `yaml:"reference"`
	VendorID  string       `yaml:"vendor_id"`
	Lines     []ImportLine `yaml:"lines"`
}

// ImportLine is one purchase order line in an import file.
type ImportLine struct {
	Description     string `yaml:"description"`
	AmountToInvoice string `yaml:"amount_to_invoice"`
}

// ImportExtraction is one extracted bill in an import file.
type ImportExtraction struct {
	ID            string    `yaml:"id"`
	VendorID      string    `yaml:"vendor_id"`
	InvoiceNumber string    `yaml:"invoice_number"`
	GoalTotal     string    `yaml:"goal_total"`
	POReferences  []string  `yaml:"po_references"`
	ReceivedAt    time.Time `yaml:"received_at"`
}

// LoadImportFile reads and parses an import file.
func LoadImportFile(path string) (*ImportFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file ImportFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &file, nil
}

func newImportCommand(opts *rootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load purchase orders and extractions from a YAML file",
		Long: `Load purchase orders and extractions from a YAML file.

Purchase orders are upserted by reference. Extractions are stored as
pending, ready for link or batch.

Example:
  invoice-match import --file data.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := LoadImportFile(file)
			if err != nil {
				return err
			}

			rt, err := opts.open(cmd.ErrOrStderr(), "import")
			if err != nil {
				return err
			}
			defer rt.Close()

			orders, extractions, err := importData(cmd, rt, data)
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d purchase orders and %d extractions\n", orders, extractions)
			return err
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file to import (required)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func importData(cmd *cobra.Command, rt *runtime, data *ImportFile) (int, int, error) {
	orders := 0
	for _, in := range data.PurchaseOrders {
		po := &storage.PurchaseOrder{Reference: in.Reference, VendorID: in.VendorID}
		if po.Reference == "" || po.VendorID == "" {
			return orders, 0, fmt.Errorf("purchase order %q: reference and vendor_id are required", in.Reference)
		}
		for _, line := range in.Lines {
			amount, err := decimal.NewFromString(line.AmountToInvoice)
			if err != nil {
				return orders, 0, fmt.Errorf("purchase order %s: invalid amount %q: %w", in.Reference, line.AmountToInvoice, err)
			}
			po.Lines = append(po.Lines, storage.PurchaseOrderLine{
				Description:     line.Description,
				AmountToInvoice: amount,
			})
		}
		if err := rt.store.SavePurchaseOrder(po); err != nil {
			return orders, 0, fmt.Errorf("purchase order %s: %w", in.Reference, err)
		}
		orders++
	}

	extractions := 0
	for _, in := range data.Extractions {
		goal, err := decimal.NewFromString(in.GoalTotal)
		if err != nil {
			return orders, extractions, fmt.Errorf("extraction %q: invalid goal_total %q: %w", in.ID, in.GoalTotal, err)
		}
		if _, err := rt.svc.SubmitExtraction(cmd.Context(), service.ExtractionInput{
			ID:            in.ID,
			VendorID:      in.VendorID,
			InvoiceNumber: in.InvoiceNumber,
			GoalTotal:     goal,
			POReferences:  in.POReferences,
			ReceivedAt:    in.ReceivedAt,
		}); err != nil {
			return orders, extractions, fmt.Errorf("extraction %q: %w", in.ID, err)
		}
		extractions++
	}

	return orders, extractions, nil
}
