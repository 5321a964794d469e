package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"transportagent/internal/model"
)

type reportStore interface {
	CountItemsByStatus(ctx context.Context) (map[model.ItemStatus]int, error)
	CountBatchesByStatus(ctx context.Context) (map[model.BatchStatus]int, error)
	ListItems(ctx context.Context, status model.ItemStatus) ([]model.RequestItem, error)
	ListBatches(ctx context.Context, status model.BatchStatus, limit int) ([]model.Batch, error)
	GetBatch(ctx context.Context, id int64) (*model.Batch, error)
}

var (
	itemStatuses = []model.ItemStatus{
		model.ItemNew, model.ItemPending, model.ItemValid,
		model.ItemInvalid, model.ItemOnHold, model.ItemError,
	}
	batchStatuses = []model.BatchStatus{
		model.BatchNew, model.BatchPending, model.BatchDone, model.BatchError,
	}
)

func reportCounts(ctx context.Context, out io.Writer, st reportStore) error {
	items, err := st.CountItemsByStatus(ctx)
	if err != nil {
		return err
	}
	batches, err := st.CountBatchesByStatus(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ITEMS\tCOUNT")
	for _, s := range itemStatuses {
		fmt.Fprintf(w, "%s\t%d\n", s, items[s])
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "BATCHES\tCOUNT")
	for _, s := range batchStatuses {
		fmt.Fprintf(w, "%s\t%d\n", s, batches[s])
	}
	return w.Flush()
}

func reportItems(ctx context.Context, out io.Writer, st reportStore, status model.ItemStatus) error {
	items, err := st.ListItems(ctx, status)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintf(out, "No %s items found\n", status)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	writeItems(w, items)
	return w.Flush()
}

func reportFailedBatches(ctx context.Context, out io.Writer, st reportStore) error {
	batches, err := st.ListBatches(ctx, model.BatchError, 0)
	if err != nil {
		return err
	}
	if len(batches) == 0 {
		fmt.Fprintln(out, "No failed batches")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "BATCH\tPROGRAM\tINTERFACE\tITEMS\tVENDOR ID\tUPDATED\tMESSAGE")
	for _, b := range batches {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\t%s\n",
			b.ID, b.Key.ProgramCode, b.Key.InterfaceCode, len(b.Items),
			dash(b.VendorRequestID), b.UpdatedAt.Format("2006-01-02 15:04:05"), b.Message)
	}
	return w.Flush()
}

func reportBatch(ctx context.Context, out io.Writer, st reportStore, id int64) error {
	b, err := st.GetBatch(ctx, id)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Batch:\t%d\n", b.ID)
	fmt.Fprintf(w, "Status:\t%s\n", b.Status)
	fmt.Fprintf(w, "Program:\t%s\n", b.Key.ProgramCode)
	fmt.Fprintf(w, "Interface:\t%s\n", b.Key.InterfaceCode)
	if b.Key.ProgramCode == model.ProgramGetHistory {
		fmt.Fprintf(w, "Dates:\t%s\n", b.Key.DateRange())
	}
	fmt.Fprintf(w, "Priority:\t%d\n", b.Priority)
	fmt.Fprintf(w, "Vendor ID:\t%s\n", dash(b.VendorRequestID))
	fmt.Fprintf(w, "Vendor status:\t%s\n", dash(string(b.VendorStatus)))
	fmt.Fprintf(w, "Response file:\t%s\n", dash(b.ResponseFilePath))
	if b.Message != "" {
		fmt.Fprintf(w, "Message:\t%s\n", b.Message)
	}
	fmt.Fprintln(w)
	writeItems(w, b.Items)
	return w.Flush()
}

func writeItems(w io.Writer, items []model.RequestItem) {
	fmt.Fprintln(w, "ID\tTICKER\tYELLOW KEY\tMNEMONIC\tSTATUS\tVALUE\tMESSAGE")
	for _, item := range items {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			item.ID, item.Ticker, item.YellowKey, item.Mnemonic,
			item.Status, dash(item.ReturnValue), item.PublicMsg)
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
