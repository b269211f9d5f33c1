package sweep

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"
)

// SessionConfig wires one interactive sweep. Store, Index, Gateway,
// Translator, and Prompter are required; the rest default.
type SessionConfig struct {
	Store      *TrackingStore
	Index      DuplicateIndex
	Gateway    DeletionGateway
	Translator *PathTranslator

	// Filters exclude instances from review. Applied in order; one match
	// excludes.
	Filters []Filter

	Prompter Prompter
	Viewer   Viewer
	Out      io.Writer
	Logger   *zap.Logger

	// SyncInterval is the period of the background republish of the tracking
	// store. Defaults to 10 minutes.
	SyncInterval time.Duration
}

// Session runs the interactive review of one location's duplicates.
type Session struct {
	cfg    SessionConfig
	logger *zap.Logger
	out    io.Writer
}

func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("Store is required")
	}
	if cfg.Index == nil {
		return nil, fmt.Errorf("Index is required")
	}
	if cfg.Gateway == nil {
		return nil, fmt.Errorf("Gateway is required")
	}
	if cfg.Translator == nil {
		return nil, fmt.Errorf("Translator is required")
	}
	if cfg.Prompter == nil {
		return nil, fmt.Errorf("Prompter is required")
	}
	if cfg.Viewer == nil {
		cfg.Viewer = NewTempViewer()
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = 10 * time.Minute
	}
	return &Session{cfg: cfg, logger: cfg.Logger, out: cfg.Out}, nil
}

type fileGroup struct {
	fileID    int64
	instances []FileInstance
}

// groupDuplicates buckets instances by file id, keeping first-seen order so
// review follows query order.
func groupDuplicates(instances []FileInstance) []fileGroup {
	byID := map[int64]int{}
	var groups []fileGroup
	for _, inst := range instances {
		i, ok := byID[inst.FileID]
		if !ok {
			i = len(groups)
			byID[inst.FileID] = i
			groups = append(groups, fileGroup{fileID: inst.FileID})
		}
		groups[i].instances = append(groups[i].instances, inst)
	}
	return groups
}

type groupOutcome int

const (
	groupDecided groupOutcome = iota
	groupSkipped
	groupQuit
)

type deleteOutcome int

const (
	deleteRetry deleteOutcome = iota
	deleteDecided
	deleteFailed
)

// Run sweeps one location: query duplicates, filter, drop already-decided
// files, then review the rest group by group. The tracking store is
// republished on a timer while the review runs and once more on the way out,
// whether the sweep completed, was quit, or failed.
func (s *Session) Run(ctx context.Context, operatorPath string) (err error) {
	target, err := s.cfg.Translator.ToServerDirs(operatorPath)
	if err != nil {
		return err
	}
	s.logger.Info("sweep started",
		zap.String("location", operatorPath), zap.String("server_dirs", target))

	syncCtx, stopSync := context.WithCancel(ctx)
	var syncDone sync.WaitGroup
	syncDone.Add(1)
	go s.syncLoop(syncCtx, &syncDone)

	defer func() {
		stopSync()
		syncDone.Wait()
		if err != nil {
			s.cfg.Store.RecordError("sweep", nil, err.Error(), operatorPath)
		}
		if syncErr := s.cfg.Store.Sync(); syncErr != nil {
			s.logger.Warn("final sync failed", zap.Error(syncErr))
			s.cfg.Store.RecordError("sync", nil, syncErr.Error(), "final")
		}
		s.cfg.Viewer.Cleanup()
		fmt.Fprintln(s.out, "Sweep complete.")
	}()

	instances, err := s.cfg.Index.FindDuplicatesUnder(ctx, target)
	if err != nil {
		return err
	}
	if len(instances) == 0 {
		fmt.Fprintln(s.out, "No duplicate files found in this location.")
		if err := s.cfg.Store.RecordLocationComplete(target, 0); err != nil {
			return fmt.Errorf("record location complete: %w", err)
		}
		return nil
	}
	fmt.Fprintf(s.out, "Found %d duplicate instances under %s.\n", len(instances), operatorPath)

	kept := ApplyFilters(instances, s.cfg.Filters)
	if excluded := len(instances) - len(kept); excluded > 0 {
		fmt.Fprintf(s.out, "Filters excluded %d instances.\n", excluded)
	}

	var pending []FileInstance
	for _, inst := range kept {
		done, perr := s.cfg.Store.IsProcessed(inst.FileID)
		if perr != nil {
			return fmt.Errorf("check reviewed state of file %d: %w", inst.FileID, perr)
		}
		if !done {
			pending = append(pending, inst)
		}
	}
	groups := groupDuplicates(pending)
	fmt.Fprintf(s.out, "%d files to review.\n", len(groups))

	for i, g := range groups {
		if ctx.Err() != nil {
			fmt.Fprintln(s.out, "Interrupted; syncing tracking store.")
			return nil
		}
		outcome, gerr := s.reviewGroup(ctx, i+1, len(groups), g, target)
		if gerr != nil {
			return gerr
		}
		if outcome == groupQuit {
			fmt.Fprintln(s.out, "Quitting; syncing tracking store.")
			return nil
		}
	}

	if err := s.cfg.Store.RecordLocationComplete(target, len(groups)); err != nil {
		return fmt.Errorf("record location complete: %w", err)
	}
	fmt.Fprintln(s.out, "All files in location reviewed.")
	return nil
}

func (s *Session) reviewGroup(ctx context.Context, pos, total int, g fileGroup, target string) (groupOutcome, error) {
	locations, err := s.cfg.Index.FindAllLocations(ctx, g.fileID)
	if err != nil {
		return groupSkipped, err
	}
	if len(locations) == 0 {
		// Gone between queries. The index is eventually consistent; note it
		// and move on.
		s.logger.Warn("file vanished from index", zap.Int64("file_id", g.fileID))
		s.cfg.Store.RecordError("query", &g.fileID, "file has no locations in index", target)
		return groupSkipped, nil
	}

	s.renderGroup(pos, total, g.fileID, locations, target)
	for {
		s.printMenu()
		line, err := s.cfg.Prompter.Ask("\nYour choice: ")
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(s.out, "Input closed; quitting.")
				return groupQuit, nil
			}
			return groupSkipped, err
		}

		cmd, nums := parseCommand(line)
		switch cmd {
		case cmdQuit:
			return groupQuit, nil

		case cmdSkip:
			fmt.Fprintln(s.out, "Skipped; the file stays unreviewed.")
			return groupSkipped, nil

		case cmdKeep:
			note := fmt.Sprintf("kept all %d instances", len(locations))
			if err := s.cfg.Store.RecordKept(g.fileID, note); err != nil {
				s.logger.Error("kept decision not recorded", zap.Int64("file_id", g.fileID), zap.Error(err))
				s.cfg.Store.RecordError("record", &g.fileID, err.Error(), "kept")
				fmt.Fprintln(s.out, "Could not record the decision; the file stays unreviewed.")
				return groupSkipped, nil
			}
			fmt.Fprintln(s.out, "Marked as reviewed; all copies kept.")
			return groupDecided, nil

		case cmdOpen:
			n := nums[0]
			if n < 1 || n > len(locations) {
				fmt.Fprintln(s.out, "Invalid instance number.")
				continue
			}
			loc := locations[n-1]
			path := s.cfg.Translator.InstancePath(loc.Directories, loc.Filename)
			fmt.Fprintf(s.out, "Opening %s\n", path)
			if err := s.cfg.Viewer.CopyAndOpen(path); err != nil {
				fmt.Fprintf(s.out, "Could not open: %v\n", err)
				s.cfg.Store.RecordError("open", &g.fileID, err.Error(), path)
			}

		case cmdDelete:
			outcome, derr := s.deleteInstances(ctx, g.fileID, locations, nums)
			if derr != nil {
				return groupSkipped, derr
			}
			switch outcome {
			case deleteDecided:
				return groupDecided, nil
			case deleteFailed:
				return groupSkipped, nil
			}
			// deleteRetry reprompts.

		default:
			fmt.Fprintln(s.out, "Invalid command.")
		}
	}
}

// deleteInstances confirms and executes one delete selection. The decision
// row is written only after at least one deletion succeeded; a selection
// whose every request failed leaves the file unreviewed for a later sweep.
func (s *Session) deleteInstances(ctx context.Context, fileID int64, locations []FileInstance, nums []int) (deleteOutcome, error) {
	var chosen []int
	for _, n := range nums {
		if n >= 1 && n <= len(locations) {
			chosen = append(chosen, n)
		}
	}
	if len(chosen) == 0 {
		fmt.Fprintln(s.out, "No valid instance numbers.")
		return deleteRetry, nil
	}

	fmt.Fprintf(s.out, "\nAbout to request deletion of %d instance(s):\n", len(chosen))
	for _, n := range chosen {
		loc := locations[n-1]
		fmt.Fprintf(s.out, "  [%d] %s\n", n, s.cfg.Translator.InstancePath(loc.Directories, loc.Filename))
	}
	answer, err := s.cfg.Prompter.Ask("Confirm deletion? [yes/no]: ")
	if err != nil && !errors.Is(err, io.EOF) {
		return deleteRetry, err
	}
	if !isYes(answer) {
		fmt.Fprintln(s.out, "Deletion cancelled.")
		return deleteRetry, nil
	}

	var deletions []Deletion
	for _, n := range chosen {
		loc := locations[n-1]
		path := s.cfg.Translator.InstancePath(loc.Directories, loc.Filename)
		fmt.Fprintf(s.out, "Requesting deletion: %s\n", path)
		ref, gerr := s.cfg.Gateway.RequestDeletion(ctx, path)
		if gerr != nil {
			s.logger.Warn("deletion refused", zap.String("path", path), zap.Error(gerr))
			s.cfg.Store.RecordError("delete", &fileID, gerr.Error(), path)
			fmt.Fprintf(s.out, "Deletion failed: %v\n", gerr)
			continue
		}
		deletions = append(deletions, Deletion{Path: path, SizeBytes: loc.SizeBytes, GatewayRef: ref})
	}

	if len(deletions) == 0 {
		fmt.Fprintln(s.out, "No deletions succeeded; the file stays unreviewed.")
		return deleteFailed, nil
	}
	note := fmt.Sprintf("deleted %d of %d instances", len(deletions), len(locations))
	if err := s.cfg.Store.RecordDeleted(fileID, note, deletions); err != nil {
		s.logger.Error("deleted decision not recorded", zap.Int64("file_id", fileID), zap.Error(err))
		s.cfg.Store.RecordError("record", &fileID, err.Error(), "deleted")
		fmt.Fprintln(s.out, "Deletions were requested but the decision could not be recorded.")
		return deleteFailed, nil
	}
	if failed := len(chosen) - len(deletions); failed > 0 {
		fmt.Fprintf(s.out, "Recorded %d deletion(s); %d request(s) failed.\n", len(deletions), failed)
	} else {
		fmt.Fprintln(s.out, "File reviewed; deletions recorded.")
	}
	return deleteDecided, nil
}

func (s *Session) renderGroup(pos, total int, fileID int64, locations []FileInstance, target string) {
	fmt.Fprintf(s.out, "\nFile %d of %d: id %d (%s)\n", pos, total, fileID, locations[0].Filename)
	w := tabwriter.NewWriter(s.out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "  #\tPATH\tSIZE\tNOTE")
	for i, loc := range locations {
		note := "duplicate"
		if loc.Directories == target {
			note = "current location"
		}
		fmt.Fprintf(w, "  %d\t%s\t%s\t%s\n",
			i+1, s.cfg.Translator.InstancePath(loc.Directories, loc.Filename), FormatSize(loc.SizeBytes), note)
	}
	_ = w.Flush()
}

func (s *Session) printMenu() {
	fmt.Fprintln(s.out, "\nCommands:")
	fmt.Fprintln(s.out, "  <numbers>  request deletion of the listed instances (e.g. \"1 3\")")
	fmt.Fprintln(s.out, "  c          keep all copies (mark reviewed)")
	fmt.Fprintln(s.out, "  o <#>      open an instance for inspection")
	fmt.Fprintln(s.out, "  s          skip this file")
	fmt.Fprintln(s.out, "  q          quit and sync")
}

// syncLoop republishes the tracking store on a timer until the review ends.
// A failed sync is recorded and retried on the next tick; it never stops the
// review.
func (s *Session) syncLoop(ctx context.Context, done *sync.WaitGroup) {
	defer done.Done()
	ticker := time.NewTicker(s.cfg.SyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.cfg.Store.Sync(); err != nil {
				s.logger.Warn("periodic sync failed", zap.Error(err))
				s.cfg.Store.RecordError("sync", nil, err.Error(), "periodic")
			} else {
				s.logger.Debug("periodic sync completed")
			}
		}
	}
}
