package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/voxdoc/voxdoc-go/pkg/voxdoc"
)

var (
	envFile  string
	logLevel string
	jsonLogs bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "voxdoc",
		Short: "Voxdoc CLI",
		Long:  "Voice-driven document editing: generate HTML articles and refine them in a live voice session",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if envFile != "" {
				_ = godotenv.Load(envFile)
			}
			logConfig := voxdoc.DefaultLogConfig()
			logConfig.Level = voxdoc.ParseLogLevel(logLevel)
			logConfig.Pretty = !jsonLogs
			voxdoc.SetGlobalLogger(voxdoc.NewVoxdocLogger(logConfig))
		},
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to a .env file to load")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "INFO", "Log level (TRACE, DEBUG, INFO, WARN, ERROR)")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Emit JSON logs instead of console output")

	rootCmd.AddCommand(liveCmd())
	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(devicesCmd())
	rootCmd.AddCommand(setupCmd())

	if err := rootCmd.Execute(); err != nil {
		voxdoc.GetGlobalLogger().WithError(err).Fatal("CLI execution failed")
	}
}

func liveCmd() *cobra.Command {
	var docFile string
	var voice string
	var reportFailures bool

	cmd := &cobra.Command{
		Use:   "live",
		Short: "Run a live voice editing session",
		Long:  "Open a live voice session over an HTML document; spoken edits are applied and written back to the file",
		Run: func(cmd *cobra.Command, args []string) {
			config := voxdoc.NewVoxdocConfig()
			if voice != "" {
				config.Voice = voice
			}
			if reportFailures {
				config.ReportToolFailures = true
			}
			if issues := config.Validate(); len(issues) > 0 {
				for _, issue := range issues {
					fmt.Fprintf(os.Stderr, "config: %s\n", issue)
				}
				os.Exit(1)
			}

			client := voxdoc.NewVoxdocClient(config)
			defer client.Close()

			if docFile != "" {
				data, err := os.ReadFile(docFile)
				if err != nil {
					voxdoc.GetGlobalLogger().WithError(err).Fatal("Failed to read document file")
				}
				client.Document().SetHTML(string(data))
			}

			store := voxdoc.NewProjectStore(config)
			defer store.Close()
			projectName := "cli-session"
			if docFile != "" {
				projectName = docFile
			}
			client.UseStore(store, "cli", projectName)

			if docFile != "" {
				client.Document().OnChange(func(html string, version int64) {
					if err := os.WriteFile(docFile, []byte(html), 0644); err != nil {
						voxdoc.GetGlobalLogger().WithError(err).Warn("Failed to write document file")
					}
				})
			}

			client.OnTranscription(voxdoc.CreateTranscriptPrinter(os.Stdout))
			client.OnPatchResult(voxdoc.CreatePatchLogHandler(nil))
			client.OnError(voxdoc.CreateErrorLoggingHandler("live"))
			client.OnStateChange(func(state voxdoc.ConnectionState) {
				fmt.Printf("\n-- session %s --\n", state)
			})

			fmt.Println("Connecting live session... (Ctrl-C to stop)")
			if vErr := client.ConnectLive(context.Background()); vErr != nil {
				voxdoc.GetGlobalLogger().LogError(vErr)
				fmt.Fprintf(os.Stderr, "connection failed: %s\n", vErr.Message)
				os.Exit(1)
			}

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			<-sig

			fmt.Println("\nStopping...")
			client.StopLive()

			stats := client.GetStats()
			fmt.Printf("Session done: %d messages in, %d out, %d tool calls\n",
				stats.MessagesReceived, stats.MessagesSent, stats.ToolCalls)
		},
	}

	cmd.Flags().StringVar(&docFile, "doc", "", "HTML file to edit (loaded at start, written on every change)")
	cmd.Flags().StringVar(&voice, "voice", "", "Override the configured voice")
	cmd.Flags().BoolVar(&reportFailures, "report-tool-failures", false, "Relay patch failures back to the model")
	return cmd
}

func generateCmd() *cobra.Command {
	var prompt string
	var attachments []string
	var outFile string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate an HTML article from a prompt",
		Long:  "One-shot article generation from a prompt plus optional file attachments",
		Run: func(cmd *cobra.Command, args []string) {
			if prompt == "" {
				fmt.Fprintln(os.Stderr, "generate: --prompt is required")
				os.Exit(1)
			}

			config := voxdoc.NewVoxdocConfig()
			gc := voxdoc.NewGenerationClient(config)

			req := &voxdoc.GenerateRequest{Prompt: prompt}
			for _, path := range attachments {
				data, err := os.ReadFile(path)
				if err != nil {
					voxdoc.GetGlobalLogger().WithError(err).Fatal("Failed to read attachment")
				}
				req.Attachments = append(req.Attachments, voxdoc.Attachment{
					MIMEType: mimeTypeForFile(path),
					Data:     data,
				})
			}

			fmt.Println("Generating...")
			result := gc.GenerateDocument(context.Background(), req)
			if !result.Success {
				voxdoc.GetGlobalLogger().LogError(result.Error)
				fmt.Fprintf(os.Stderr, "generation failed: %s\n", result.Error.Message)
				os.Exit(1)
			}

			doc := result.Data
			if outFile != "" {
				if err := os.WriteFile(outFile, []byte(doc.HTML), 0644); err != nil {
					voxdoc.GetGlobalLogger().WithError(err).Fatal("Failed to write output file")
				}
				fmt.Printf("Wrote %d bytes to %s (%d tokens)\n", len(doc.HTML), outFile, doc.TotalTokens)
			} else {
				fmt.Println(doc.HTML)
			}
		},
	}

	cmd.Flags().StringVar(&prompt, "prompt", "", "What the article should cover")
	cmd.Flags().StringArrayVar(&attachments, "attach", nil, "File to attach as reference material (repeatable)")
	cmd.Flags().StringVar(&outFile, "out", "", "Write the generated HTML here instead of stdout")
	return cmd
}

func devicesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List audio devices",
		Long:  "List available audio input and output devices and their defaults",
		Run: func(cmd *cobra.Command, args []string) {
			devices, vErr := voxdoc.ListAudioDevices()
			if vErr != nil {
				voxdoc.GetGlobalLogger().LogError(vErr)
				fmt.Fprintf(os.Stderr, "device enumeration failed: %s\n", vErr.Message)
				os.Exit(1)
			}

			fmt.Println("Available Audio Devices:")
			for _, dev := range devices {
				tags := make([]string, 0, 2)
				if dev.IsDefaultInput {
					tags = append(tags, "default input")
				}
				if dev.IsDefaultOutput {
					tags = append(tags, "default output")
				}
				suffix := ""
				if len(tags) > 0 {
					suffix = " (" + strings.Join(tags, ", ") + ")"
				}
				fmt.Printf("  %d: %s%s - %d in / %d out @ %.0f Hz [%s]\n",
					dev.ID, dev.Name, suffix,
					dev.MaxInputChannels, dev.MaxOutputChannels,
					dev.DefaultSampleRate, dev.HostAPI)
			}
		},
	}
	return cmd
}

func setupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Interactively scaffold a .env file",
		Long:  "Prompt for the API key and common settings, then write a .env in the current directory",
		Run: func(cmd *cobra.Command, args []string) {
			reader := bufio.NewReader(os.Stdin)

			fmt.Print("API key (VOXDOC_API_KEY): ")
			apiKey, _ := reader.ReadString('\n')
			apiKey = strings.TrimSpace(apiKey)

			fmt.Print("Voice [Kore]: ")
			voice, _ := reader.ReadString('\n')
			voice = strings.TrimSpace(voice)
			if voice == "" {
				voice = "Kore"
			}

			fmt.Print("VAD threshold [0.002]: ")
			thresholdStr, _ := reader.ReadString('\n')
			thresholdStr = strings.TrimSpace(thresholdStr)
			if thresholdStr != "" {
				if _, err := strconv.ParseFloat(thresholdStr, 64); err != nil {
					fmt.Fprintf(os.Stderr, "invalid threshold %q, using default\n", thresholdStr)
					thresholdStr = ""
				}
			}

			fmt.Print("Redis address (empty for in-memory store): ")
			redisAddr, _ := reader.ReadString('\n')
			redisAddr = strings.TrimSpace(redisAddr)

			var sb strings.Builder
			fmt.Fprintf(&sb, "VOXDOC_API_KEY=%s\n", apiKey)
			fmt.Fprintf(&sb, "VOXDOC_VOICE=%s\n", voice)
			if thresholdStr != "" {
				fmt.Fprintf(&sb, "VOXDOC_VAD_THRESHOLD=%s\n", thresholdStr)
			}
			if redisAddr != "" {
				fmt.Fprintf(&sb, "VOXDOC_REDIS_ADDR=%s\n", redisAddr)
			}

			if err := os.WriteFile(".env", []byte(sb.String()), 0600); err != nil {
				voxdoc.GetGlobalLogger().WithError(err).Fatal("Failed to write .env")
			}
			fmt.Println("Wrote .env")

			config := voxdoc.NewVoxdocConfig()
			if issues := config.Validate(); len(issues) > 0 {
				fmt.Println("Remaining issues:")
				for _, issue := range issues {
					fmt.Printf("  - %s\n", issue)
				}
			} else {
				config.PrintConfig()
			}
		},
	}
	return cmd
}

func mimeTypeForFile(path string) string {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".png"):
		return "image/png"
	case strings.HasSuffix(lower, ".jpg"), strings.HasSuffix(lower, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(lower, ".webp"):
		return "image/webp"
	case strings.HasSuffix(lower, ".pdf"):
		return "application/pdf"
	case strings.HasSuffix(lower, ".html"), strings.HasSuffix(lower, ".htm"):
		return "text/html"
	case strings.HasSuffix(lower, ".md"):
		return "text/markdown"
	default:
		return "text/plain"
	}
}
