package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/localai-packaged/orchestrator/pkg/certs"
	"github.com/localai-packaged/orchestrator/pkg/compose"
	"github.com/localai-packaged/orchestrator/pkg/dotenv"
	"github.com/localai-packaged/orchestrator/pkg/hostsfile"
	"github.com/localai-packaged/orchestrator/pkg/log"
	"github.com/localai-packaged/orchestrator/pkg/orcherr"
	"github.com/localai-packaged/orchestrator/pkg/orchestrator"
	"github.com/localai-packaged/orchestrator/pkg/procexec"
	"github.com/localai-packaged/orchestrator/pkg/remoteaccess"
	"github.com/localai-packaged/orchestrator/pkg/runmetrics"
	"github.com/localai-packaged/orchestrator/pkg/stack"
	"github.com/localai-packaged/orchestrator/pkg/subrepo"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// subrepoURL and subrepoRef pin the upstream sub-stack repository this
// orchestrator merges with its own AI stack.
const (
	subrepoURL  = "https://github.com/supabase/supabase.git"
	subrepoRef  = "master"
	subrepoPath = "docker"
)

func main() {
	cmdRun := false
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) { cmdRun = true }
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	if !cmdRun {
		// Execute returned before any RunE ran: a pflag/cobra argument error.
		// Cobra already printed its own usage message to stderr.
		os.Exit(int(orcherr.ExitUsage))
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(int(exitCodeFor(err)))
}

var rootCmd = &cobra.Command{
	Use:           "orchestrator",
	Short:         "Brings up the local AI platform's infra and AI container stacks",
	Version:       Version,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"orchestrator version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(launchCmd)
	rootCmd.AddCommand(planRemoteAccessCmd)
	rootCmd.AddCommand(versionCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

// exitCodeFor maps a returned error to the process exit code described in
// the CLI's external interface. Errors that don't match a known kind exit 1.
func exitCodeFor(err error) orcherr.ExitCode {
	if err == nil {
		return orcherr.ExitOK
	}
	var (
		configErr  *orcherr.ConfigParseError
		certErr    *orcherr.CertificateError
		subrepoErr *orcherr.SubRepoError
		hostsErr   *orcherr.HostsFileError
		intErr     *orcherr.Interrupted
	)
	switch {
	case isUsageError(err):
		return orcherr.ExitUsage
	case errors.As(err, &configErr):
		return orcherr.ExitConfigInvalid
	case errors.As(err, &certErr):
		return orcherr.ExitCertificateFailed
	case errors.As(err, &subrepoErr):
		return orcherr.ExitSubRepoFailed
	case errors.As(err, &hostsErr):
		return orcherr.ExitHostsFileUnwritable
	case errors.As(err, &intErr):
		return orcherr.ExitInterrupted
	case isStageError(err, "infra"):
		return orcherr.ExitInfraStackFailed
	case isStageError(err, "ai"):
		return orcherr.ExitAIStackFailed
	default:
		return 1
	}
}

func isStageError(err error, stackName string) bool {
	se, ok := err.(*stack.StageError)
	if !ok {
		return false
	}
	return se.Stack == stackName
}

func isUsageError(err error) bool {
	_, ok := err.(*usageError)
	return ok
}

type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

// ---- launch ----

var launchCmd = &cobra.Command{
	Use:   "launch",
	Short: "Reconcile configuration, certificates and the sub-stack, then bring up both container stacks",
	RunE:  runLaunch,
}

func init() {
	launchCmd.Flags().String("profile", "", "Acceleration profile: gpu-nvidia, gpu-amd, cpu, or none (required)")
	launchCmd.Flags().String("project", "localai", "Compose project name")
	launchCmd.Flags().Bool("dry-run", false, "Print the planned actions without executing them")
	launchCmd.Flags().String("metrics-file", "", "If set, write a Prometheus textfile-collector snapshot of this run's outcome to this path")
}

func runLaunch(cmd *cobra.Command, args []string) error {
	profileFlag, _ := cmd.Flags().GetString("profile")
	project, _ := cmd.Flags().GetString("project")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	metricsFile, _ := cmd.Flags().GetString("metrics-file")

	if profileFlag == "" {
		return &usageError{"launch: --profile is required"}
	}
	profile := orchestrator.Profile(profileFlag)
	if !profile.Valid() {
		return &usageError{fmt.Sprintf("launch: invalid --profile %q", profileFlag)}
	}
	if profile == orchestrator.ProfileGPUAMD && !orchestrator.HostSupportsAMDGPU() {
		return &usageError{fmt.Sprintf("launch: --profile gpu-amd is not supported on %s", runtime.GOOS)}
	}

	logger := log.WithComponent("launch")
	ctx, stop := signalContext()
	defer stop()

	const (
		envPath       = ".env"
		certDir       = "certs"
		subrepoDir    = "supabase"
		hostsFilePath = "/etc/hosts"
	)

	if dryRun {
		logger.Info().Str("profile", string(profile)).Str("project", project).Msg("dry run: no side effects will be applied")
		fmt.Println("Planned actions:")
		fmt.Println("  1. load/reconcile", envPath)
		fmt.Println("  2. ensure certificate pair in", certDir)
		fmt.Println("  3. ensure sub-repo checkout in", subrepoDir)
		fmt.Println("  4. propagate", envPath, "and patch pooler port into the sub-repo compose file")
		fmt.Println("  5. reconcile", hostsFilePath)
		fmt.Printf("  6. bring up infra then ai stacks for project %q with profile %q\n", project, profile)
		return nil
	}

	cfg, err := reconcileConfig(envPath)
	if err != nil {
		return err
	}

	if err := certs.EnsureCertificates(certDir); err != nil {
		return err
	}
	logger.Info().Msg("certificate pair ready")

	if err := subrepo.EnsureSubrepo(ctx, subrepoURL, subrepoDir, subrepoPath, subrepoRef); err != nil {
		return err
	}

	subrepoDockerDir := filepath.Join(subrepoDir, subrepoPath)
	if err := compose.CopyEnvToSubrepo(envPath, subrepoDockerDir); err != nil {
		return err
	}
	if err := compose.PatchSubrepoCompose(filepath.Join(subrepoDockerDir, "docker-compose.yml")); err != nil {
		return err
	}

	// Hosts-file failures are never fatal for launch, whether the write was
	// unwritable or the existing block was corrupt: the stack launch must
	// still proceed. Only `plan-remote-access --update-local` treats the
	// same failure as fatal, by returning it verbatim.
	if err := reconcileHosts(hostsFilePath); err != nil {
		var hfe *orcherr.HostsFileError
		if errors.As(err, &hfe) {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		} else {
			return err
		}
	}

	stacks := layoutStacks(project, subrepoDockerDir)
	launcher := stack.Launcher{Project: project, Stacks: stacks, Profile: profile}

	stackDurations, launchErr := launcher.BringUp(ctx)

	if metricsFile != "" {
		recorder := runmetrics.NewRecorder()
		recorder.RecordLaunch(time.Now(), profile, stackDurations, launchErr == nil)
		if err := recorder.WriteTextfile(metricsFile); err != nil {
			logger.Warn().Err(err).Msg("failed to write metrics textfile")
		}
	}

	if launchErr != nil {
		return launchErr
	}

	_ = cfg // loaded config is consumed via the .env file path by compose/subrepo steps
	logger.Info().Msg("launch complete")
	return nil
}

func reconcileConfig(envPath string) (*dotenv.Config, error) {
	cfg, err := dotenv.Load(envPath)
	if err != nil {
		return nil, err
	}
	if cfg.EnsureDefault("POOLER_TENANT_ID", "1000", "") {
		if err := cfg.Save(envPath); err != nil {
			return nil, err
		}
		log.WithComponent("config").Info().Msg("inserted default POOLER_TENANT_ID")
	}
	return cfg, nil
}

func reconcileHosts(hostsFilePath string) error {
	address, err := remoteaccess.DefaultServerAddress()
	if err != nil || address == "" {
		address = "127.0.0.1"
	}
	return hostsfile.Reconcile(hostsFilePath, address)
}

func layoutStacks(project, subrepoDockerDir string) []orchestrator.Stack {
	infra := orchestrator.Stack{
		Name:         "infra",
		ComposeFiles: []string{filepath.Join(subrepoDockerDir, "docker-compose.yml")},
		Project:      project,
		ProfileAware: false,
	}
	ai := orchestrator.Stack{
		Name:             "ai",
		ComposeFiles:     []string{"docker-compose.yml"},
		Project:          project,
		ProfileAware:     true,
		OverlayIfPresent: "docker-compose.host-cache.yml",
	}
	return []orchestrator.Stack{infra, ai}
}

// ---- plan-remote-access ----

var planRemoteAccessCmd = &cobra.Command{
	Use:   "plan-remote-access",
	Short: "Produce hosts-file and DNS-zone fragments for reaching this host's services from another machine",
	RunE:  runPlanRemoteAccess,
}

func init() {
	planRemoteAccessCmd.Flags().String("server-address", "", "Address to advertise (default: auto-detect)")
	planRemoteAccessCmd.Flags().Bool("dns", false, "Emit the DNS zone fragment")
	planRemoteAccessCmd.Flags().Bool("update-local", false, "Reconcile this host's own hosts file instead of printing the fragment")
}

func runPlanRemoteAccess(cmd *cobra.Command, args []string) error {
	serverAddress, _ := cmd.Flags().GetString("server-address")
	emitDNS, _ := cmd.Flags().GetBool("dns")
	updateLocal, _ := cmd.Flags().GetBool("update-local")

	if serverAddress == "" {
		addr, err := remoteaccess.DefaultServerAddress()
		if err != nil {
			return err
		}
		if addr == "" {
			return &usageError{"plan-remote-access: could not auto-detect a server address; pass --server-address"}
		}
		serverAddress = addr
	}

	plan := remoteaccess.PlanFor(serverAddress, remoteaccess.CanonicalHostnames())

	if updateLocal {
		if err := hostsfile.Reconcile("/etc/hosts", serverAddress); err != nil {
			return err
		}
		fmt.Println("Local hosts file reconciled for", serverAddress)
		return nil
	}

	fmt.Println(plan.Instructions)
	fmt.Println("--- POSIX hosts fragment ---")
	fmt.Print(plan.PosixHostsFragment)
	if emitDNS {
		fmt.Println("--- DNS zone fragment ---")
		fmt.Print(plan.DNSZoneFragment)
	}
	return nil
}

// ---- version ----

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("orchestrator version %s\nCommit: %s\nBuilt: %s\n", Version, Commit, BuildTime)
	},
}

// signalContext returns a context canceled on SIGINT/SIGTERM, carrying
// whichever of the two was actually received so procexec.Run forwards that
// same signal to the in-flight child instead of always assuming SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)

	var received os.Signal
	go func() {
		select {
		case sig := <-ch:
			received = sig
			cancel()
		case <-ctx.Done():
		}
	}()

	return procexec.ContextWithSignal(ctx, &received), func() {
		signal.Stop(ch)
		cancel()
	}
}
