package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"accounting/internal/core"
	"accounting/internal/log"
	"accounting/internal/sheets"
)

// LedgerOps is what the menu needs from the ledger service.
type LedgerOps interface {
	Add(ctx context.Context, e core.Entry) (int, error)
	Update(ctx context.Context, row int, e core.Entry) error
	Delete(ctx context.Context, row int) error
	List(ctx context.Context) (sheets.Listing, error)
}

var errRequired = errors.New("a value is required")

// Menu is the interactive numbered menu. Every failure is reported and the
// menu is shown again; only choosing 0 or closing the input ends it.
type Menu struct {
	Ledger LedgerOps
	In     io.Reader
	Out    io.Writer
	// Now supplies the default occurrence time for new entries.
	Now func() time.Time

	scanner *bufio.Scanner
}

const menuText = `
1. Add entry
2. List entries
3. Update entry
4. Delete entry
0. Exit
`

// Run shows the menu until the user exits or the input ends.
func (m *Menu) Run(ctx context.Context) error {
	m.scanner = bufio.NewScanner(m.In)
	if m.Now == nil {
		m.Now = time.Now
	}
	for {
		fmt.Fprint(m.Out, menuText)
		choice, err := m.prompt("Choose an option")
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		switch choice {
		case "0":
			fmt.Fprintln(m.Out, "Bye.")
			return nil
		case "1":
			err = m.add(ctx)
		case "2":
			err = m.list(ctx)
		case "3":
			err = m.update(ctx)
		case "4":
			err = m.delete(ctx)
		default:
			fmt.Fprintf(m.Out, "Unknown option %q.\n", choice)
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			log.FromContext(ctx).DebugContext(ctx, "menu action failed", log.FieldOperation, choice, log.FieldError, err)
			fmt.Fprintf(m.Out, "Error: %s\n", describe(err))
		}
	}
}

func (m *Menu) add(ctx context.Context) error {
	e, err := m.readEntry(nil)
	if err != nil {
		return err
	}
	row, err := m.Ledger.Add(ctx, e)
	if err != nil {
		return err
	}
	fmt.Fprintf(m.Out, "Entry added at row %d.\n", row)
	return nil
}

func (m *Menu) list(ctx context.Context) error {
	listing, err := m.Ledger.List(ctx)
	if err != nil {
		return err
	}
	m.printListing(listing)
	return nil
}

func (m *Menu) update(ctx context.Context) error {
	rec, err := m.pick(ctx, "Item to update")
	if err != nil {
		return err
	}
	e, err := m.readEntry(&rec.Entry)
	if err != nil {
		return err
	}
	if err := m.Ledger.Update(ctx, rec.Row, e); err != nil {
		return err
	}
	fmt.Fprintf(m.Out, "Row %d updated.\n", rec.Row)
	return nil
}

func (m *Menu) delete(ctx context.Context) error {
	rec, err := m.pick(ctx, "Item to delete")
	if err != nil {
		return err
	}
	if err := m.Ledger.Delete(ctx, rec.Row); err != nil {
		return err
	}
	fmt.Fprintf(m.Out, "Row %d deleted.\n", rec.Row)
	return nil
}

// pick lists the ledger and maps the chosen item number to its record, so
// the row used is the one the entry was read from.
func (m *Menu) pick(ctx context.Context, label string) (sheets.Record, error) {
	listing, err := m.Ledger.List(ctx)
	if err != nil {
		return sheets.Record{}, err
	}
	if len(listing.Records) == 0 {
		return sheets.Record{}, errors.New("the ledger has no entries")
	}
	m.printListing(listing)

	answer, err := m.prompt(label)
	if err != nil {
		return sheets.Record{}, err
	}
	n, err := strconv.Atoi(answer)
	if err != nil || n < 1 || n > len(listing.Records) {
		return sheets.Record{}, fmt.Errorf("item must be a number between 1 and %d", len(listing.Records))
	}
	return listing.Records[n-1], nil
}

func (m *Menu) printListing(listing sheets.Listing) {
	if len(listing.Records) == 0 {
		fmt.Fprintln(m.Out, "No entries.")
	}
	for i, r := range listing.Records {
		fmt.Fprintf(m.Out, "%d. %s\n", i+1, summarize(r))
	}
	if n := len(listing.Skipped); n > 0 {
		fmt.Fprintf(m.Out, "(%d unreadable rows skipped)\n", n)
	}
}

func summarize(r sheets.Record) string {
	e := r.Entry
	return fmt.Sprintf("[row %d] %s | %s | %s | qty %d | sales %s | fee %s | income %s | invoice %s | taxable %s",
		r.Row,
		e.OccurredAt.Format(time.DateTime),
		e.Platform,
		e.ProductName,
		e.OrderQuantity,
		e.TotalSales.String(),
		e.PlatformFee.String(),
		e.ActualIncome().String(),
		yesNo(e.InvoiceRequired),
		yesNo(e.Taxable))
}

// readEntry prompts for every field. With cur set, an empty answer keeps the
// current value; otherwise it applies the field default or is refused.
func (m *Menu) readEntry(cur *core.Entry) (core.Entry, error) {
	var f core.Fields
	if cur != nil {
		f = cur.Fields()
	} else {
		f.OccurredAt = m.Now()
	}

	answer, err := m.prompt(withDefault("Date (YYYY-MM-DD HH:MM)", f.OccurredAt.Format("2006-01-02 15:04:05")))
	if err != nil {
		return core.Entry{}, err
	}
	if answer != "" {
		if f.OccurredAt, err = core.ParseTimestamp(answer); err != nil {
			return core.Entry{}, err
		}
	}

	if f.Platform, err = m.promptText("Platform", f.Platform); err != nil {
		return core.Entry{}, err
	}
	if f.ProductName, err = m.promptText("Product name", f.ProductName); err != nil {
		return core.Entry{}, err
	}

	current := func(s string) string {
		if cur == nil {
			return ""
		}
		return s
	}
	if answer, err = m.promptText("Order quantity", current(strconv.Itoa(f.OrderQuantity))); err != nil {
		return core.Entry{}, err
	}
	if f.OrderQuantity, err = core.ParseQuantity(answer); err != nil {
		return core.Entry{}, err
	}
	if answer, err = m.promptText("Total sales", current(f.TotalSales.String())); err != nil {
		return core.Entry{}, err
	}
	if f.TotalSales, err = core.ParseAmount(answer); err != nil {
		return core.Entry{}, err
	}
	if answer, err = m.promptText("Platform fee", current(f.PlatformFee.String())); err != nil {
		return core.Entry{}, err
	}
	if f.PlatformFee, err = core.ParseAmount(answer); err != nil {
		return core.Entry{}, err
	}

	if f.InvoiceRequired, err = m.promptYesNo("Invoice required", f.InvoiceRequired); err != nil {
		return core.Entry{}, err
	}
	taxable := true
	if f.Taxable != nil {
		taxable = *f.Taxable
	}
	if taxable, err = m.promptYesNo("Taxable", taxable); err != nil {
		return core.Entry{}, err
	}
	f.Taxable = &taxable

	return core.Construct(f)
}

func (m *Menu) promptText(label, current string) (string, error) {
	answer, err := m.prompt(withDefault(label, current))
	if err != nil {
		return "", err
	}
	if answer == "" {
		answer = current
	}
	if answer == "" {
		return "", fmt.Errorf("%s: %w", strings.ToLower(label), errRequired)
	}
	return answer, nil
}

func (m *Menu) promptYesNo(label string, current bool) (bool, error) {
	answer, err := m.prompt(withDefault(label+" (y/n)", yesNo(current)))
	if err != nil {
		return false, err
	}
	v, ok, err := core.ParseYesNo(answer)
	if err != nil {
		return false, err
	}
	if !ok {
		return current, nil
	}
	return v, nil
}

func (m *Menu) prompt(label string) (string, error) {
	fmt.Fprintf(m.Out, "%s: ", label)
	if !m.scanner.Scan() {
		fmt.Fprintln(m.Out)
		if err := m.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(m.scanner.Text()), nil
}

func withDefault(label, current string) string {
	if current == "" {
		return label
	}
	return fmt.Sprintf("%s [%s]", label, current)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// describe turns ledger errors into short messages for the prompt.
func describe(err error) string {
	switch {
	case errors.Is(err, sheets.ErrHeaderRow):
		return "row 1 is the header and cannot be changed"
	case errors.Is(err, sheets.ErrRowOutOfRange):
		return "that row does not exist"
	}
	return err.Error()
}
