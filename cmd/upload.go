package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/parnexcodes/ddl/internal/config"
	"github.com/parnexcodes/ddl/internal/logging"
	"github.com/parnexcodes/ddl/internal/output"
	"github.com/parnexcodes/ddl/internal/providers"
	"github.com/parnexcodes/ddl/internal/uploader"
	providerpkg "github.com/parnexcodes/ddl/pkg/providers"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

var (
	providerNames    []string
	files            []string
	folders          []string
	userID           string
	retryAttempts    int
	retryDelay       time.Duration
	progress         bool
	progressInterval time.Duration
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload files and directories to DDL providers",
	Long: `Upload files and directories to the configured DDL providers.
Each path is one job. Jobs run in parallel; providers within a job are tried
in order until one returns a link.

Use --file/-f for files and --folder/-d for directories. Supports glob patterns for files.`,
	Args: cobra.NoArgs,
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().StringSliceVarP(&providerNames, "providers", "p", []string{}, "only use these providers, in configuration order")
	uploadCmd.Flags().StringSliceVarP(&files, "file", "f", []string{}, "files to upload (can be used multiple times, supports glob patterns)")
	uploadCmd.Flags().StringSliceVarP(&folders, "folder", "d", []string{}, "folders to upload (can be used multiple times)")
	uploadCmd.Flags().StringVar(&userID, "user", "default", "user whose provider settings are used")
	uploadCmd.Flags().IntVar(&retryAttempts, "retry-attempts", 3, "attempts per HTTP upload request")
	uploadCmd.Flags().DurationVar(&retryDelay, "retry-delay", 4*time.Second, "initial delay between attempts")
	uploadCmd.Flags().BoolVar(&progress, "progress", false, "show upload progress")
	uploadCmd.Flags().DurationVar(&progressInterval, "progress-interval", 2*time.Second, "how often progress is printed")

	viper.BindPFlag("user", uploadCmd.Flags().Lookup("user"))
	viper.BindPFlag("upload.max_attempts", uploadCmd.Flags().Lookup("retry-attempts"))
	viper.BindPFlag("upload.initial_interval", uploadCmd.Flags().Lookup("retry-delay"))
}

// expandGlobPatterns expands glob patterns in file paths and returns all matched files
func expandGlobPatterns(filePatterns []string) ([]string, error) {
	var result []string
	for _, pattern := range filePatterns {
		if strings.Contains(pattern, "*") || strings.Contains(pattern, "?") || strings.Contains(pattern, "[") {
			// Handle glob patterns
			matches, err := filepath.Glob(pattern)
			if err != nil {
				return nil, fmt.Errorf("invalid glob pattern '%s': %w", pattern, err)
			}
			result = append(result, matches...)
		} else {
			// Direct file path
			result = append(result, pattern)
		}
	}
	return result, nil
}

// validatePaths validates that file paths are actually files and folder paths are directories
func validatePaths(files []string, folders []string) error {
	for _, file := range files {
		if info, err := os.Stat(file); err != nil {
			if os.IsNotExist(err) {
				logging.FileValidation(file, "file_existence", fmt.Errorf("file does not exist"))
				return fmt.Errorf("file does not exist: %s", file)
			}
			logging.FileValidation(file, "file_check", err)
			return fmt.Errorf("error checking file %s: %w", file, err)
		} else if info.IsDir() {
			logging.FileValidation(file, "file_type", fmt.Errorf("path is directory"))
			return fmt.Errorf("path '%s' is a directory, but --file flag requires a file. Use --folder/-d for directories", file)
		} else {
			logging.FileValidation(file, "file_check", nil)
		}
	}

	for _, folder := range folders {
		if info, err := os.Stat(folder); err != nil {
			if os.IsNotExist(err) {
				logging.FileValidation(folder, "folder_existence", fmt.Errorf("directory does not exist"))
				return fmt.Errorf("directory does not exist: %s", folder)
			}
			logging.FileValidation(folder, "folder_check", err)
			return fmt.Errorf("error checking directory %s: %w", folder, err)
		} else if !info.IsDir() {
			logging.FileValidation(folder, "folder_type", fmt.Errorf("path is file"))
			return fmt.Errorf("path '%s' is a file, but --folder/-d flag requires a directory. Use --file/-f for files", folder)
		} else {
			logging.FileValidation(folder, "folder_check", nil)
		}
	}

	return nil
}

// namedRegistry restricts a job to the providers named on the command line
type namedRegistry struct {
	factory *providerpkg.Factory
	names   []string
}

func (r *namedRegistry) Build(configs []config.ProviderConfig) []providers.Adapter {
	adapters, err := r.factory.CreateProvidersFromNames(r.names, configs)
	if err != nil {
		logging.Warn("Provider selection failed", map[string]interface{}{
			"providers": r.names,
			"error":     err.Error(),
		})
		return nil
	}
	return adapters
}

// job is one path being uploaded
type job struct {
	info        uploader.FileInfo
	coordinator *uploader.Coordinator
	listener    *output.JobListener
}

func (j *job) running() bool {
	return j.listener.Result() == nil && j.coordinator.Engine() != uploader.DefaultEngine
}

func runUpload(cmd *cobra.Command, args []string) error {
	// Initialize logging system with verbose flag
	logging.Init(viper.GetBool("verbose"), os.Stderr)

	// Validate flags
	if len(files) == 0 && len(folders) == 0 {
		return fmt.Errorf("no files or folders specified. Use --file/-f for files or --folder/-d for directories")
	}

	logging.FlagProcessing("files", len(files))
	logging.FlagProcessing("folders", len(folders))

	// Expand glob patterns for files
	expandedFiles, err := expandGlobPatterns(files)
	if err != nil {
		return err
	}

	// Validate paths
	if err := validatePaths(expandedFiles, folders); err != nil {
		return err
	}

	paths := append(expandedFiles, folders...)
	if len(paths) == 0 {
		return fmt.Errorf("no files matched the given patterns")
	}

	// Load configuration
	configSource := "CLI flags only"
	if viper.ConfigFileUsed() != "" {
		configSource = viper.ConfigFileUsed()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logging.ErrorContext("config_load", err, map[string]interface{}{
			"source": configSource,
		})
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logging.ConfigLoad("effective_values", map[string]interface{}{
		"source":          configSource,
		"concurrency":     cfg.Concurrency,
		"output":          cfg.Output,
		"user":            cfg.User,
		"providers_count": len(cfg.Providers),
		"max_attempts":    cfg.Upload.MaxAttempts,
	})

	handler, err := output.NewHandler(cfg.Output, cmd.OutOrStdout())
	if err != nil {
		return fmt.Errorf("failed to create output handler: %w", err)
	}
	defer handler.Close()

	transport := providers.NewTransport(cfg.Upload.Timeout, providers.WithRetryPolicy(cfg.Upload.RetryPolicy()))
	factory := providerpkg.NewFactory(transport)
	var registry uploader.Registry = factory
	if len(providerNames) > 0 {
		registry = &namedRegistry{factory: factory, names: providerNames}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobs := make([]*job, 0, len(paths))
	for _, path := range paths {
		info, err := uploader.Measure(ctx, path)
		if err != nil {
			return err
		}
		listener := output.NewJobListener(handler, info.Name, path)
		jobs = append(jobs, &job{
			info:        info,
			coordinator: uploader.New(listener, info.Name, path, cfg, registry, cfg.User),
			listener:    listener,
		})
	}

	// Handle signals for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			logging.Warn("Interrupt received, stopping uploads", nil)
			for _, j := range jobs {
				j.coordinator.Cancel()
			}
			cancel()
		case <-ctx.Done():
		}
	}()

	if progress {
		stop := reportProgress(handler, jobs, progressInterval)
		defer stop()
	}

	failed := runJobs(ctx, jobs, cfg.Concurrency)
	if failed > 0 {
		return fmt.Errorf("%d of %d uploads failed", failed, len(jobs))
	}
	return nil
}

// runJobs uploads every job with at most concurrency jobs in flight and
// returns the number of jobs that did not produce a link.
func runJobs(ctx context.Context, jobs []*job, concurrency int) int {
	if concurrency < 1 {
		concurrency = 1
	}
	logging.ConcurrencySettings(concurrency, len(jobs))

	sem := semaphore.NewWeighted(int64(concurrency))
	var g errgroup.Group
	var failed int32

	for _, j := range jobs {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Interrupted before this job started
			j.coordinator.Cancel()
			atomic.AddInt32(&failed, 1)
			continue
		}

		g.Go(func() error {
			defer sem.Release(1)
			if err := j.coordinator.Upload(ctx, j.info.Name, j.info.Size); err != nil {
				atomic.AddInt32(&failed, 1)
			}
			return nil
		})
	}

	_ = g.Wait()
	return int(atomic.LoadInt32(&failed))
}

// reportProgress prints a snapshot of every running job on each tick
func reportProgress(handler output.Handler, jobs []*job, interval time.Duration) func() {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				for _, j := range jobs {
					if j.running() {
						_ = handler.HandleProgress(output.Snapshot(j.coordinator))
					}
				}
			}
		}
	}()

	return func() {
		ticker.Stop()
		close(done)
		wg.Wait()
	}
}
