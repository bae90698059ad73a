package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"okuma/internal/domain/receipt"
	"okuma/internal/infrastructure/scanner"
)

// NewScanCommand creates the interactive scanning loop.
func NewScanCommand(opts *RootOptions) *cobra.Command {
	var (
		fisno    string
		tarih    string
		cariKod  string
		cariIsim string
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan barcodes into a receipt session",
		Long: `Starts (or continues) a receipt session and reads barcodes from stdin.
A barcode scanner types its code as a fast keystroke burst ending in Enter.
Lines starting with ':' are commands; try :help.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.App(cmd)
			if err != nil {
				return err
			}
			ctx := app.Context(cmd.Context())
			out := cmd.OutOrStdout()

			if err := startOrContinue(ctx, app, out, fisno, tarih, cariKod, cariIsim); err != nil {
				return err
			}
			return runScanLoop(ctx, app, cmd.InOrStdin(), out)
		},
	}

	cmd.Flags().StringVar(&fisno, "fisno", "", "receipt number (default: next free number from the server)")
	cmd.Flags().StringVar(&tarih, "tarih", "", "receipt date YYYY-MM-DD (default: server date or today)")
	cmd.Flags().StringVar(&cariKod, "cari-kodu", "", "counterparty account code")
	cmd.Flags().StringVar(&cariIsim, "cari-isim", "", "counterparty name (freeform)")

	return cmd
}

// startOrContinue resumes a persisted current session when no explicit
// fisno was requested, otherwise starts a fresh one after checking the
// number does not shadow queued pending work.
func startOrContinue(ctx context.Context, app *App, out io.Writer, fisno, tarih, cariKod, cariIsim string) error {
	if cur := app.Store.Current(); cur != nil && fisno == "" {
		fmt.Fprintf(out, "Continuing receipt %s (%d lines)\n", cur.Fisno, len(cur.ActiveLines()))
		return nil
	}

	if fisno == "" {
		suggested, suggestedTarih := app.Submitter.NextReceiptNumber(ctx)
		if suggested == "" {
			return fmt.Errorf("no receipt number given and the server suggestion failed; pass --fisno")
		}
		fisno = suggested
		if tarih == "" {
			tarih = suggestedTarih
		}
		fmt.Fprintf(out, "Using next receipt number %s\n", fisno)
	}

	if err := app.Submitter.CheckFisnoFree(fisno); err != nil {
		return err
	}

	var cari *receipt.Cari
	if cariKod != "" || cariIsim != "" {
		cari = &receipt.Cari{Code: cariKod, Name: cariIsim}
	}
	if err := app.Store.Start(ctx, fisno, tarih, cari); err != nil {
		return err
	}
	fmt.Fprintf(out, "Receipt %s started\n", fisno)
	return nil
}

// runScanLoop feeds stdin keystrokes through the decoder. Lines starting
// with ':' bypass the decoder and run as commands.
func runScanLoop(ctx context.Context, app *App, in io.Reader, out io.Writer) error {
	dec := scanner.New(scanner.Config{
		KeyTimeout: app.Config.Scanner.KeyTimeout.Std(),
		Debounce:   app.Config.Scanner.Debounce.Std(),
	}, app.Clock, app.Log)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for barkod := range dec.Scans() {
			if err := app.Store.AddItem(ctx, barkod, 1); err != nil {
				fmt.Fprintf(out, "! %v\n", err)
				continue
			}
			if line := lookupLine(app, barkod); line != nil {
				fmt.Fprintf(out, "+ %s x%d\n", line.Barcode, line.Quantity)
			}
		}
	}()

	fmt.Fprintln(out, "Scanning. :help for commands, :quit or Ctrl-D to leave.")

	reader := bufio.NewReader(in)
	var command []rune
	inCommand := false
	atLineStart := true

	for {
		r, _, err := reader.ReadRune()
		if err != nil {
			break
		}
		if r == '\r' {
			continue
		}

		if r == '\n' {
			if inCommand {
				quit, err := runScanCommand(ctx, app, out, strings.TrimSpace(string(command)))
				if err != nil {
					fmt.Fprintf(out, "! %v\n", err)
				}
				if quit {
					break
				}
				command = command[:0]
				inCommand = false
			} else {
				dec.HandleKey(scanner.Event{Enter: true})
			}
			atLineStart = true
			continue
		}

		if atLineStart {
			inCommand = r == ':'
			atLineStart = false
		}
		if inCommand {
			command = append(command, r)
			continue
		}
		dec.HandleKey(scanner.Event{Key: r})
	}

	dec.Stop()
	wg.Wait()
	return nil
}

func lookupLine(app *App, barkod string) *receipt.Line {
	cur := app.Store.Current()
	if cur == nil {
		return nil
	}
	return cur.FindLine(barkod)
}

func runScanCommand(ctx context.Context, app *App, out io.Writer, cmd string) (quit bool, err error) {
	fields := strings.Fields(strings.TrimPrefix(cmd, ":"))
	if len(fields) == 0 {
		return false, nil
	}

	switch fields[0] {
	case "quit", "q":
		return true, nil

	case "help":
		fmt.Fprint(out, scanHelp)
		return false, nil

	case "list", "ls":
		printSession(out, app.Store.Current())
		return false, nil

	case "add":
		if len(fields) < 2 {
			return false, fmt.Errorf("usage: :add <barkod> [miktar]")
		}
		miktar := int64(1)
		if len(fields) > 2 {
			miktar, err = strconv.ParseInt(fields[2], 10, 64)
			if err != nil {
				return false, fmt.Errorf("quantity must be a number")
			}
		}
		return false, app.Store.AddItem(ctx, fields[1], miktar)

	case "qty":
		if len(fields) != 3 {
			return false, fmt.Errorf("usage: :qty <barkod> <miktar>")
		}
		miktar, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return false, fmt.Errorf("quantity must be a number")
		}
		return false, app.Store.UpdateQuantity(ctx, fields[1], miktar)

	case "inc":
		if len(fields) != 2 {
			return false, fmt.Errorf("usage: :inc <barkod>")
		}
		return false, app.Store.Increase(ctx, fields[1])

	case "dec":
		if len(fields) != 2 {
			return false, fmt.Errorf("usage: :dec <barkod>")
		}
		return false, app.Store.Decrease(ctx, fields[1])

	case "del":
		if len(fields) != 2 {
			return false, fmt.Errorf("usage: :del <barkod>")
		}
		ok, err := app.Confirm.Confirm(ctx, "Remove line", "Remove barcode "+fields[1]+"?")
		if err != nil || !ok {
			return false, err
		}
		return false, app.Store.RemoveItem(ctx, fields[1])

	case "cari":
		if len(fields) < 2 {
			return false, fmt.Errorf("usage: :cari <kod> [isim...]")
		}
		cari := receipt.Cari{Code: fields[1], Name: strings.Join(fields[2:], " ")}
		return false, app.Store.UpdateCari(ctx, cari)

	case "findcari":
		if len(fields) < 2 {
			return false, fmt.Errorf("usage: :findcari <query>")
		}
		rows, err := app.API.SearchCari(ctx, "cari_isim", strings.Join(fields[1:], " "))
		if err != nil {
			return false, err
		}
		for _, r := range rows {
			fmt.Fprintf(out, "  %s  %s\n", r.Code, r.Name)
		}
		if len(rows) == 0 {
			fmt.Fprintln(out, "No matches.")
		}
		return false, nil

	case "findstok":
		if len(fields) != 2 {
			return false, fmt.Errorf("usage: :findstok <query>")
		}
		rows, err := app.API.SearchStok(ctx, "barkodu", fields[1])
		if err != nil {
			return false, err
		}
		for _, r := range rows {
			fmt.Fprintf(out, "  %s  %s  %s\n", r.Barcode, r.Code, r.Name)
		}
		if len(rows) == 0 {
			fmt.Fprintln(out, "No matches.")
		}
		return false, nil

	case "save":
		if err := app.Pending.Save(ctx); err != nil {
			return false, err
		}
		fmt.Fprintln(out, "Saved to pending.")
		return false, nil

	case "send":
		record, err := app.Submitter.Submit(ctx, app.Store.Current())
		if err != nil {
			return false, err
		}
		if record != nil {
			fmt.Fprintf(out, "Sent. Server receipt id %d\n", record.OkumaID)
		}
		return false, nil

	case "clear":
		ok, err := app.Confirm.Confirm(ctx, "Clear session", "Discard the whole list?")
		if err != nil || !ok {
			return false, err
		}
		return false, app.Store.Clear(ctx)

	default:
		return false, fmt.Errorf("unknown command %q, try :help", fields[0])
	}
}

const scanHelp = `Commands:
  :list            show the current receipt
  :add B [N]       add barcode B with quantity N (manual entry)
  :qty B N         set quantity of barcode B to N
  :inc B / :dec B  bump quantity up or down (floor 1)
  :del B           remove barcode B
  :cari KOD [ISIM] set the counterparty
  :findcari Q      search counterparty accounts by name
  :findstok B      look a barcode up in the stock catalog
  :save            park the receipt in the pending queue
  :send            submit the receipt to the backend
  :clear           discard the receipt
  :quit            leave scan mode
`

// printSession renders the session with newest-touched lines first.
func printSession(out io.Writer, s *receipt.Session) {
	if s == nil {
		fmt.Fprintln(out, "No active session.")
		return
	}

	lines := s.ActiveLines()
	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].Timestamp.After(lines[j].Timestamp)
	})

	s.RecalculateTotals()
	fmt.Fprintf(out, "Receipt %s  %s  %s %s\n", s.Fisno, s.Tarih, s.CariCode, s.CariName)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "BARKOD\tMIKTAR\tSTOK\tEDITED")
	for _, line := range lines {
		edited := ""
		if line.Edited {
			edited = "*"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", line.Barcode, line.Quantity, line.StokName, edited)
	}
	w.Flush()
	fmt.Fprintf(out, "Total: %d items, %s\n", s.TotalQuantity, s.TotalAmount.StringFixed(2))
}
