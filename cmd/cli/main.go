package main

import (
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/txscript"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/Jayson-Furr/UTXOTools/pkg/analyzer"
	"github.com/Jayson-Furr/UTXOTools/pkg/extractor"
	"github.com/Jayson-Furr/UTXOTools/pkg/snapshot"
	"github.com/Jayson-Furr/UTXOTools/pkg/types"
)

var logger *zap.Logger

func main() {
	var err error
	logger, err = zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	app := &cli.App{
		Name:  "utxotools",
		Usage: "inspect, validate, convert and extract UTXO set snapshots",
		Commands: []*cli.Command{
			headerCommand(),
			validateCommand(),
			dumpCommand(),
			statsCommand(),
			extractCommand(),
			copyCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		printError(err)
		os.Exit(1)
	}
}

// printError emits the JSON error envelope on stdout and a readable message
// on stderr.
func printError(err error) {
	out := struct {
		OK    bool             `json:"ok"`
		Error *types.ErrorInfo `json:"error"`
	}{
		Error: &types.ErrorInfo{Code: errorCode(err), Message: err.Error()},
	}
	encoded, _ := json.Marshal(out)
	fmt.Println(string(encoded))
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}

func errorCode(err error) string {
	var formatErr *snapshot.FormatError
	var versionErr *snapshot.VersionError
	var validationErr *snapshot.ValidationError
	switch {
	case errors.As(err, &formatErr):
		return "FORMAT_ERROR"
	case errors.As(err, &versionErr):
		return "VERSION_ERROR"
	case errors.As(err, &validationErr):
		return "VALIDATION_ERROR"
	case errors.Is(err, os.ErrNotExist):
		return "FILE_NOT_FOUND"
	case errors.Is(err, os.ErrExist):
		return "FILE_EXISTS"
	default:
		return "IO_ERROR"
	}
}

func printJSON(v any) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}

func requireSnapshotArg(c *cli.Context) (string, error) {
	if c.NArg() < 1 {
		return "", fmt.Errorf("usage: utxotools %s <snapshot>", c.Command.Name)
	}
	return c.Args().First(), nil
}

func headerCommand() *cli.Command {
	return &cli.Command{
		Name:  "header",
		Usage: "print a snapshot's header",
		Action: func(c *cli.Context) error {
			path, err := requireSnapshotArg(c)
			if err != nil {
				return err
			}
			r, err := snapshot.Open(path)
			if err != nil {
				return err
			}
			defer r.Close()

			h, err := r.ReadHeader()
			if err != nil {
				return err
			}
			return printJSON(h.Info())
		},
	}
}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "read a snapshot to the end and cross-check the output count",
		Action: func(c *cli.Context) error {
			path, err := requireSnapshotArg(c)
			if err != nil {
				return err
			}
			r, err := snapshot.Open(path)
			if err != nil {
				return err
			}
			defer r.Close()

			h, err := r.ReadHeader()
			if err != nil {
				return err
			}
			logger.Info("validating snapshot",
				zap.String("path", path),
				zap.String("network", string(h.Network)),
				zap.Uint64("utxo_count", h.UTXOCount))

			if err := r.Validate(); err != nil {
				return err
			}
			return printJSON(struct {
				OK     bool             `json:"ok"`
				Header types.HeaderInfo `json:"header"`
			}{OK: true, Header: h.Info()})
		},
	}
}

var dumpFields = []string{"count", "txid", "vout", "height", "coinbase", "amount", "script", "type"}

func dumpCommand() *cli.Command {
	return &cli.Command{
		Name:  "dump",
		Usage: "export a snapshot's outputs as CSV",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "fields",
				Value: "count,txid,vout,amount,type",
				Usage: "comma-separated output columns [" + strings.Join(dumpFields, ",") + "]",
			},
			&cli.StringFlag{Name: "o", Usage: "write to `FILE` instead of stdout"},
			&cli.Uint64Flag{Name: "limit", Usage: "stop after `N` outputs"},
		},
		Action: func(c *cli.Context) error {
			path, err := requireSnapshotArg(c)
			if err != nil {
				return err
			}

			fields := strings.Split(c.String("fields"), ",")
			for _, f := range fields {
				if !isDumpField(f) {
					return fmt.Errorf("%q is not a dump field; choose from %s", f, strings.Join(dumpFields, ","))
				}
			}

			out := io.Writer(os.Stdout)
			if file := c.String("o"); file != "" {
				f, err := os.Create(file)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}

			r, err := snapshot.Open(path)
			if err != nil {
				return err
			}
			defer r.Close()
			if _, err := r.ReadHeader(); err != nil {
				return err
			}

			w := csv.NewWriter(out)
			if err := w.Write(fields); err != nil {
				return err
			}

			limit := c.Uint64("limit")
			var count uint64
			for {
				u, err := r.NextEntry()
				if err == io.EOF {
					break
				}
				if err != nil {
					return err
				}
				count++
				if err := w.Write(dumpRow(fields, count, u)); err != nil {
					return err
				}
				if limit > 0 && count >= limit {
					break
				}
			}
			w.Flush()
			logger.Info("dump complete", zap.Uint64("outputs", count))
			return w.Error()
		},
	}
}

func isDumpField(name string) bool {
	for _, f := range dumpFields {
		if f == name {
			return true
		}
	}
	return false
}

func dumpRow(fields []string, count uint64, u *types.UTXO) []string {
	row := make([]string, len(fields))
	for i, f := range fields {
		switch f {
		case "count":
			row[i] = strconv.FormatUint(count, 10)
		case "txid":
			row[i] = u.Txid.String()
		case "vout":
			row[i] = strconv.FormatUint(u.Vout, 10)
		case "height":
			row[i] = strconv.FormatUint(uint64(u.Height), 10)
		case "coinbase":
			row[i] = strconv.FormatBool(u.Coinbase)
		case "amount":
			row[i] = strconv.FormatUint(u.Amount, 10)
		case "script":
			row[i] = hex.EncodeToString(u.Script)
		case "type":
			row[i] = txscript.GetScriptClass(u.Script).String()
		}
	}
	return row
}

func statsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "aggregate statistics over a snapshot",
		Action: func(c *cli.Context) error {
			path, err := requireSnapshotArg(c)
			if err != nil {
				return err
			}
			r, err := snapshot.Open(path)
			if err != nil {
				return err
			}
			defer r.Close()

			h, err := r.ReadHeader()
			if err != nil {
				return err
			}

			stats := analyzer.NewStats()
			for {
				tx, err := r.Next()
				if err == io.EOF {
					break
				}
				if err != nil {
					return err
				}
				stats.AddTransaction(tx)
			}
			return printJSON(struct {
				Header types.HeaderInfo `json:"header"`
				Stats  analyzer.Report  `json:"stats"`
			}{Header: h.Info(), Stats: stats.Report(h)})
		},
	}
}

func extractCommand() *cli.Command {
	return &cli.Command{
		Name:  "extract",
		Usage: "split a snapshot into per-script-type binary dumps",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Value: ".", Usage: "directory for the dump files"},
			&cli.BoolFlag{Name: "amounts", Usage: "prefix each record with its satoshi amount"},
			&cli.StringFlag{Name: "types", Usage: "comma-separated dump types to keep (default: all)"},
		},
		Action: func(c *cli.Context) error {
			path, err := requireSnapshotArg(c)
			if err != nil {
				return err
			}

			var only []string
			if t := c.String("types"); t != "" {
				only = strings.Split(t, ",")
			}
			if err := os.MkdirAll(c.String("out"), 0755); err != nil {
				return err
			}

			e, err := extractor.New(c.String("out"), c.Bool("amounts"), only)
			if err != nil {
				return err
			}

			r, err := snapshot.Open(path)
			if err != nil {
				e.Close()
				return err
			}
			defer r.Close()

			for {
				u, err := r.NextEntry()
				if err == io.EOF {
					break
				}
				if err != nil {
					e.Close()
					return err
				}
				if err := e.Consume(u); err != nil {
					e.Close()
					return err
				}
			}

			counts := e.Counts()
			if err := e.Close(); err != nil {
				return err
			}
			logger.Info("extract complete", zap.Uint64("skipped", e.Skipped()))
			return printJSON(struct {
				OK      bool              `json:"ok"`
				Counts  map[string]uint32 `json:"counts"`
				Skipped uint64            `json:"skipped"`
			}{OK: true, Counts: counts, Skipped: e.Skipped()})
		},
	}
}

func copyCommand() *cli.Command {
	return &cli.Command{
		Name:  "copy",
		Usage: "re-encode a snapshot, producing a canonical copy",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "force", Usage: "overwrite the destination if it exists"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 2 {
				return errors.New("usage: utxotools copy <src> <dst>")
			}
			src, dst := c.Args().Get(0), c.Args().Get(1)

			r, err := snapshot.Open(src)
			if err != nil {
				return err
			}
			defer r.Close()

			h, err := r.ReadHeader()
			if err != nil {
				return err
			}

			w, err := snapshot.Create(dst, c.Bool("force"))
			if err != nil {
				return err
			}
			if err := w.WriteHeader(h); err != nil {
				w.Close()
				return err
			}

			for {
				tx, err := r.Next()
				if err == io.EOF {
					break
				}
				if err != nil {
					w.Close()
					return err
				}
				if err := w.WriteTransaction(tx); err != nil {
					w.Close()
					return err
				}
			}
			if err := w.Close(); err != nil {
				return err
			}

			logger.Info("copy complete",
				zap.String("src", src),
				zap.String("dst", dst),
				zap.Uint64("outputs", w.Written()))
			return nil
		},
	}
}
