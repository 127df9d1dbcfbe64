package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"analyzeit/internal/analyses"
	"analyzeit/internal/bootstrap"
	"analyzeit/internal/queue"
	"analyzeit/internal/shared/storage/db"
	"analyzeit/internal/shared/storage/object"
	"analyzeit/internal/shared/telemetry"
)

const maxImportLine = 1 << 20

func newRecordsCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Operate on analysis records",
	}
	cmd.AddCommand(newRecordsImportCmd(v))
	return cmd
}

func newRecordsImportCmd(v *viper.Viper) *cobra.Command {
	var publish bool
	cmd := &cobra.Command{
		Use:   "import <file.jsonl>",
		Short: "Load analysis records, uploading referenced images to the object store",
		Long: "Each line is a record in the result event shape. An optional image_file is " +
			"uploaded first and replaces image_url. With --publish the records go through " +
			"the result queue instead of straight into the database.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(v)
			ctx := cmd.Context()

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			store, err := bootstrap.BuildStore(ctx, cfg)
			if err != nil {
				return err
			}
			imp := &importer{Store: store, BaseDir: filepath.Dir(args[0]), Now: time.Now}

			if publish {
				client, err := queue.NewSQSClient(ctx, cfg.AWSRegion, cfg.QueueURL)
				if err != nil {
					return err
				}
				imp.Publish = client.Send
			} else {
				if strings.TrimSpace(cfg.DatabaseURL) == "" {
					return errors.New("DATABASE_URL is required without --publish")
				}
				conn, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultMigrateOptions()))
				if err != nil {
					return err
				}
				defer conn.Close()
				imp.Repo = &analyses.PGRepo{DB: conn}
			}

			res, err := imp.Run(ctx, f)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "imported %d, skipped %d\n", res.Imported, res.Skipped)
			return err
		},
	}
	cmd.Flags().BoolVar(&publish, "publish", false, "send records to the result queue")
	return cmd
}

type importLine struct {
	analyses.Record
	ImageFile string `json:"image_file"`
}

type importResult struct {
	Imported int
	Skipped  int
}

// importer applies import lines either directly through Repo or as queue
// messages through Publish.
type importer struct {
	Store   object.Store
	Repo    analyses.Repo
	Publish func(ctx context.Context, msg queue.Message) error
	BaseDir string
	Now     func() time.Time
}

// Run stops at the first malformed line; stale records are counted as skipped.
func (imp *importer) Run(ctx context.Context, r io.Reader) (importResult, error) {
	var res importResult
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxImportLine)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		var line importLine
		if err := json.Unmarshal([]byte(raw), &line); err != nil {
			return res, fmt.Errorf("line %d: %w", lineNo, err)
		}
		applied, err := imp.apply(ctx, line)
		if err != nil {
			return res, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if applied {
			res.Imported++
		} else {
			res.Skipped++
		}
	}
	return res, sc.Err()
}

func (imp *importer) apply(ctx context.Context, line importLine) (bool, error) {
	rec := line.Record
	if rec.Decision == "" {
		rec.Decision = analyses.DecisionUndefined
	}
	if err := rec.Validate(); err != nil {
		return false, err
	}
	if line.ImageFile != "" {
		if err := imp.upload(ctx, &rec, line.ImageFile); err != nil {
			return false, err
		}
	}

	if imp.Publish != nil {
		if err := imp.Publish(ctx, queue.NewUpsert(rec, uuid.NewString(), imp.Now())); err != nil {
			return false, err
		}
		return true, nil
	}
	err := imp.Repo.Upsert(ctx, rec)
	if errors.Is(err, analyses.ErrStale) {
		telemetry.Info("records.import_stale", map[string]any{"analysis_id": rec.ID})
		return false, nil
	}
	return err == nil, err
}

func (imp *importer) upload(ctx context.Context, rec *analyses.Record, name string) error {
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(imp.BaseDir, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	obj, err := imp.Store.Put(ctx, rec.UserID, filepath.Base(path), f)
	if err != nil {
		return fmt.Errorf("upload %s: %w", name, err)
	}
	rec.ImageURL = obj.Ref
	if rec.ImageSizeKB == nil {
		kb := float64(obj.Size) / 1024
		rec.ImageSizeKB = &kb
	}
	if rec.ImageFormat == nil {
		if format, ok := strings.CutPrefix(obj.MIME, "image/"); ok {
			rec.ImageFormat = &format
		}
	}
	return nil
}
