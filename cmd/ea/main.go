package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"earlyadopters/internal/app"
	"earlyadopters/internal/chain"
	"earlyadopters/internal/config"
	"earlyadopters/internal/content"
	"earlyadopters/internal/db"
	"earlyadopters/internal/domain"
	"earlyadopters/internal/migrate"
	"earlyadopters/internal/repo"
	"earlyadopters/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "ea",
	Short: "Early adopters CLI",
	Long: `ea runs the early adopters activity lifecycle.
- Project: owned by the account that created it; holds an ordered list of activities.
- Activity: a task (SEND_FEEDBACK, FOLLOW_TWITTER, ...) checked by the verifier registered for its type.
- Completion: a user's submission for an activity. Synchronous verifiers decide on read; oracle verifiers need 'ea verify start' then 'ea verify finish'.
- Acceptance: the owner accepts a verified completion. Accepted authors may join the project chat.
- Reward: the owner splits a value equally among distinct accepted authors, once per project.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println("error:", err)
		stop()
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("EARLYADOPTERS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor", "", "caller account address or eip155 DID")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor", rootCmd.PersistentFlags().Lookup("actor"))
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(activityCmd())
	rootCmd.AddCommand(completionCmd())
	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(acceptCmd())
	rootCmd.AddCommand(rewardCmd())
	rootCmd.AddCommand(ledgerCmd())
	rootCmd.AddCommand(profileCmd())
	rootCmd.AddCommand(chatAccessCmd())
	rootCmd.AddCommand(contentCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(serveCmd())
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage earlyadopters.yml",
		Long:  "The config file sets the chain, the verifier registered for each activity type, the oracle and content store endpoints, and the chat gate cache.",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSON(cfg)
		},
	}
}

func configValidateCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if file != "" {
				_, err = config.FromFile(file)
			} else {
				_, err = config.Load(viper.GetString("workspace"))
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Validate this file instead of the workspace config")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := db.Open(db.Config{Workspace: viper.GetString("workspace")})
			if err != nil {
				return err
			}
			defer conn.Close()
			applied, err := migrate.Apply(cmd.Context(), conn)
			if err != nil {
				return err
			}
			v, err := migrate.Version(cmd.Context(), conn)
			if err != nil {
				return err
			}
			return printJSONOrTable(map[string]any{"applied": applied, "version": v}, nil)
		},
	}
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}

	var metadata string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a project owned by --actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				caller, err := actor()
				if err != nil {
					return err
				}
				p, err := rt.Engine.CreateProject(ctx, caller, metadata)
				if err != nil {
					return err
				}
				return printJSONOrTable(p, nil)
			})
		},
	}
	create.Flags().StringVar(&metadata, "metadata", "", "project metadata URI")

	var owner string
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List projects, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				items, err := rt.Engine.ListProjects(ctx, owner, limit, 0)
				if err != nil {
					return err
				}
				return printJSONOrTable(items, func(tw table.Writer) {
					tw.AppendHeader(table.Row{"ID", "Owner", "Metadata", "Distributed", "Created"})
					for _, p := range items {
						tw.AppendRow(table.Row{p.ID, p.Owner, p.MetadataURI, p.Distributed, p.CreatedAt})
					}
				})
			})
		},
	}
	list.Flags().StringVar(&owner, "owner", "", "filter by owner")
	list.Flags().IntVar(&limit, "limit", 50, "max projects")

	show := &cobra.Command{
		Use:   "show <project>",
		Short: "Show a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProjectID(args[0])
			if err != nil {
				return err
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				p, err := rt.Engine.GetProject(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(p, nil)
			})
		},
	}

	prj.AddCommand(create, list, show)
	return prj
}

func activityCmd() *cobra.Command {
	act := &cobra.Command{Use: "activity", Short: "Manage project activities"}

	var typ, detailURI, detailText string
	add := &cobra.Command{
		Use:   "add <project>",
		Short: "Append an activity (owner only)",
		Long:  "Pass --detail with an existing content URI, or --detail-text to store a detail document first.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProjectID(args[0])
			if err != nil {
				return err
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				caller, err := actor()
				if err != nil {
					return err
				}
				uri := detailURI
				if uri == "" && detailText != "" {
					uri, err = content.PutJSON(ctx, rt.Store, content.Detail{Content: detailText})
					if err != nil {
						return err
					}
				}
				a, err := rt.Engine.AddActivity(ctx, caller, id, typ, uri)
				if err != nil {
					return err
				}
				return printJSONOrTable(a, nil)
			})
		},
	}
	add.Flags().StringVar(&typ, "type", "", "activity type")
	add.Flags().StringVar(&detailURI, "detail", "", "detail document URI")
	add.Flags().StringVar(&detailText, "detail-text", "", "detail content to store")
	_ = add.MarkFlagRequired("type")

	list := &cobra.Command{
		Use:   "list <project>",
		Short: "List activities in registration order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProjectID(args[0])
			if err != nil {
				return err
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				items, err := rt.Engine.GetActivities(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(items, func(tw table.Writer) {
					tw.AppendHeader(table.Row{"Index", "Type", "Detail"})
					for _, a := range items {
						tw.AppendRow(table.Row{a.Index, a.Type, a.DetailURI})
					}
				})
			})
		},
	}

	types := &cobra.Command{
		Use:   "types",
		Short: "List activity types with a registered verifier",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				return printJSONOrTable(rt.Engine.Verifiers.Types(), nil)
			})
		},
	}

	act.AddCommand(add, list, types)
	return act
}

func completionCmd() *cobra.Command {
	cmp := &cobra.Command{Use: "completion", Short: "Submit and inspect completed activities"}

	var text string
	submit := &cobra.Command{
		Use:   "submit <project> <index>",
		Short: "Submit a completion as --actor",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, idx, err := parseActivityRef(args[0], args[1])
			if err != nil {
				return err
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				caller, err := actor()
				if err != nil {
					return err
				}
				c, err := rt.Engine.SubmitCompletedActivity(ctx, caller, id, idx, text)
				if err != nil {
					return err
				}
				return printJSONOrTable(c, nil)
			})
		},
	}
	submit.Flags().StringVar(&text, "content", "", "completion content")

	var activity int
	var author string
	list := &cobra.Command{
		Use:   "list <project>",
		Short: "List completions, most recent first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProjectID(args[0])
			if err != nil {
				return err
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				f := repo.CompletionFilters{ProjectID: id, Author: author}
				if activity >= 0 {
					f.ActivityIndex = &activity
				}
				items, err := rt.Engine.ListCompletedActivities(ctx, f)
				if err != nil {
					return err
				}
				return printJSONOrTable(items, func(tw table.Writer) {
					tw.AppendHeader(table.Row{"ID", "Activity", "Type", "Author", "Submitted"})
					for _, c := range items {
						tw.AppendRow(table.Row{c.ID, c.ActivityIndex, c.ActivityType, c.Author, c.SubmittedAt})
					}
				})
			})
		},
	}
	list.Flags().IntVar(&activity, "activity", -1, "filter by activity index")
	list.Flags().StringVar(&author, "author", "", "filter by author")

	cmp.AddCommand(submit, list)
	return cmp
}

func verifyCmd() *cobra.Command {
	ver := &cobra.Command{
		Use:   "verify",
		Short: "Verification of completed activities",
		Long:  "Synchronous activity types report their state directly. Oracle-backed types move not_started -> started -> verified via start and finish.",
	}
	run := func(use, short string, fn func(ctx context.Context, rt *app.Runtime, caller string, id int64, idx int, completion string) (any, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <project> <index> <completion>",
			Short: short,
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, idx, err := parseActivityRef(args[0], args[1])
				if err != nil {
					return err
				}
				return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
					caller := viper.GetString("actor")
					out, err := fn(ctx, rt, caller, id, idx, args[2])
					if err != nil {
						return err
					}
					return printJSONOrTable(out, nil)
				})
			},
		}
	}
	ver.AddCommand(
		run("status", "Show verification state", func(ctx context.Context, rt *app.Runtime, _ string, id int64, idx int, c string) (any, error) {
			return rt.Engine.Verification(ctx, id, idx, c)
		}),
		run("start", "Submit the claim to the oracle", func(ctx context.Context, rt *app.Runtime, caller string, id int64, idx int, c string) (any, error) {
			return rt.Engine.StartVerification(ctx, caller, id, idx, c)
		}),
		run("finish", "Settle a started verification", func(ctx context.Context, rt *app.Runtime, caller string, id int64, idx int, c string) (any, error) {
			return rt.Engine.FinishVerification(ctx, caller, id, idx, c)
		}),
	)
	return ver
}

func acceptCmd() *cobra.Command {
	var author string
	cmd := &cobra.Command{
		Use:   "accept <project> <index> <completion>",
		Short: "Accept a verified completion (owner only)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, idx, err := parseActivityRef(args[0], args[1])
			if err != nil {
				return err
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				caller, err := actor()
				if err != nil {
					return err
				}
				if author == "" {
					c, err := rt.Engine.GetCompletedActivity(ctx, args[2])
					if err != nil {
						return err
					}
					author = c.Author
				}
				acc, err := rt.Engine.AcceptCompletedActivity(ctx, caller, id, idx, args[2], author)
				if err != nil {
					return err
				}
				return printJSONOrTable(acc, nil)
			})
		},
	}
	cmd.Flags().StringVar(&author, "author", "", "completion author (defaults to the recorded author)")

	list := &cobra.Command{
		Use:   "list <project> <index>",
		Short: "List acceptances in order",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, idx, err := parseActivityRef(args[0], args[1])
			if err != nil {
				return err
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				items, err := rt.Engine.GetAcceptedCompletedActivities(ctx, id, idx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items, func(tw table.Writer) {
					tw.AppendHeader(table.Row{"Seq", "Completion", "Author", "Accepted"})
					for _, a := range items {
						tw.AppendRow(table.Row{a.Seq, a.CompletedActivityID, a.Author, a.AcceptedAt})
					}
				})
			})
		},
	}
	cmd.AddCommand(list)
	return cmd
}

func rewardCmd() *cobra.Command {
	rw := &cobra.Command{Use: "reward", Short: "Distribute and inspect project rewards"}

	var detail, value, wei string
	distribute := &cobra.Command{
		Use:   "distribute <project>",
		Short: "Split --value equally among accepted authors (owner only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProjectID(args[0])
			if err != nil {
				return err
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				caller, err := actor()
				if err != nil {
					return err
				}
				amount, err := parseAmountFlags(value, wei, rt.Engine.Chain())
				if err != nil {
					return err
				}
				res, err := rt.Engine.DistributeReward(ctx, caller, id, detail, amount)
				if err != nil {
					return err
				}
				return printReward(res, rt.Engine.Chain())
			})
		},
	}
	distribute.Flags().StringVar(&detail, "detail", "", "reward detail URI")
	distribute.Flags().StringVar(&value, "value", "", "amount in native units")
	distribute.Flags().StringVar(&wei, "wei", "", "amount in wei")

	show := &cobra.Command{
		Use:   "show <project>",
		Short: "Show the reward distribution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProjectID(args[0])
			if err != nil {
				return err
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				res, err := rt.Engine.GetReward(ctx, id)
				if err != nil {
					return err
				}
				return printReward(res, rt.Engine.Chain())
			})
		},
	}
	rw.AddCommand(distribute, show)
	return rw
}

func ledgerCmd() *cobra.Command {
	led := &cobra.Command{Use: "ledger", Short: "Native currency balances"}

	var value, wei string
	deposit := &cobra.Command{
		Use:   "deposit",
		Short: "Fund the --actor account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				caller, err := actor()
				if err != nil {
					return err
				}
				amount, err := parseAmountFlags(value, wei, rt.Engine.Chain())
				if err != nil {
					return err
				}
				b, err := rt.Engine.Deposit(ctx, caller, caller, amount)
				if err != nil {
					return err
				}
				return printJSONOrTable(b, nil)
			})
		},
	}
	deposit.Flags().StringVar(&value, "value", "", "amount in native units")
	deposit.Flags().StringVar(&wei, "wei", "", "amount in wei")

	balance := &cobra.Command{
		Use:   "balance <account>",
		Short: "Show an account balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				b, err := rt.Engine.Balance(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(b, func(tw table.Writer) {
					wei, _ := chain.ParseWei(b.Amount)
					c := rt.Engine.Chain()
					tw.AppendHeader(table.Row{"Account", "Wei", "Amount"})
					tw.AppendRow(table.Row{b.Account, b.Amount, chain.FormatAmount(wei, c.Decimals) + " " + c.Currency})
				})
			})
		},
	}

	var limit int
	entries := &cobra.Command{
		Use:   "entries <account>",
		Short: "List transfers touching an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				items, err := rt.Engine.LedgerEntries(ctx, args[0], limit)
				if err != nil {
					return err
				}
				return printJSONOrTable(items, func(tw table.Writer) {
					tw.AppendHeader(table.Row{"ID", "TS", "From", "To", "Amount", "Memo"})
					for _, e := range items {
						tw.AppendRow(table.Row{e.ID, e.TS, e.From, e.To, e.Amount, e.Memo})
					}
				})
			})
		},
	}
	entries.Flags().IntVar(&limit, "limit", 50, "max entries")

	led.AddCommand(deposit, balance, entries)
	return led
}

func profileCmd() *cobra.Command {
	prof := &cobra.Command{Use: "profile", Short: "Account profiles"}
	set := &cobra.Command{
		Use:   "set <uri>",
		Short: "Set the --actor profile URI",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				caller, err := actor()
				if err != nil {
					return err
				}
				p, err := rt.Engine.SetProfile(ctx, caller, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(p, nil)
			})
		},
	}
	show := &cobra.Command{
		Use:   "show <account>",
		Short: "Show a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				p, err := rt.Engine.GetProfile(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(p, nil)
			})
		},
	}
	prof.AddCommand(set, show)
	return prof
}

func chatAccessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat-access <project> <did>",
		Short: "Check whether a user may join the project chat",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProjectID(args[0])
			if err != nil {
				return err
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				ok, err := rt.Gate.Check(ctx, id, args[1])
				if err != nil {
					return err
				}
				status := "Access denied"
				if ok {
					status = "Access allowed"
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"allowed": ok, "status": status})
				}
				fmt.Println(status)
				return nil
			})
		},
	}
}

func contentCmd() *cobra.Command {
	cnt := &cobra.Command{Use: "content", Short: "Content store"}
	put := &cobra.Command{
		Use:   "put <file|->",
		Short: "Store a file and print its URI",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			var err error
			if args[0] == "-" {
				data, err = io.ReadAll(os.Stdin)
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return err
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				uri, err := rt.Store.Put(ctx, data)
				if err != nil {
					return err
				}
				fmt.Println(uri)
				return nil
			})
		},
	}
	get := &cobra.Command{
		Use:   "get <uri>",
		Short: "Print stored content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				data, err := rt.Store.Get(ctx, args[0])
				if err != nil {
					return err
				}
				_, err = os.Stdout.Write(data)
				return err
			})
		},
	}
	cnt.AddCommand(put, get)
	return cnt
}

func logCmd() *cobra.Command {
	lg := &cobra.Command{Use: "log", Short: "Event log"}
	var n int
	var evtType string
	tail := &cobra.Command{
		Use:   "tail <project>",
		Short: "Show recent project events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProjectID(args[0])
			if err != nil {
				return err
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				items, err := rt.Engine.ProjectEvents(ctx, repo.EventFilters{ProjectID: id, Type: evtType, Limit: n})
				if err != nil {
					return err
				}
				return printJSONOrTable(items, func(tw table.Writer) {
					tw.AppendHeader(table.Row{"ID", "TS", "Type", "Entity", "Actor"})
					for _, e := range items {
						tw.AppendRow(table.Row{e.ID, e.TS, e.Type, e.EntityKind + ":" + e.EntityID, e.ActorID})
					}
				})
			})
		},
	}
	tail.Flags().IntVarP(&n, "n", "n", 20, "number of events")
	tail.Flags().StringVar(&evtType, "type", "", "filter by event type")
	lg.AddCommand(tail)
	return lg
}

func apikeyCmd() *cobra.Command {
	keys := &cobra.Command{Use: "apikey", Short: "API keys for the HTTP server"}
	var name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an API key for --actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				caller, err := actor()
				if err != nil {
					return err
				}
				key, plain, err := rt.Engine.CreateAPIKey(ctx, caller, name)
				if err != nil {
					return err
				}
				return printJSON(map[string]any{"id": key.ID, "actor_id": key.ActorID, "name": key.Name, "key": plain})
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "key name")

	list := &cobra.Command{
		Use:   "list",
		Short: "List API keys for --actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				caller, err := actor()
				if err != nil {
					return err
				}
				items, err := rt.Engine.ListAPIKeys(ctx, caller)
				if err != nil {
					return err
				}
				return printJSONOrTable(items, func(tw table.Writer) {
					tw.AppendHeader(table.Row{"ID", "Name", "Created"})
					for _, k := range items {
						tw.AppendRow(table.Row{k.ID, k.Name, k.CreatedAt})
					}
				})
			})
		},
	}

	revoke := &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke an API key of --actor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				caller, err := actor()
				if err != nil {
					return err
				}
				return rt.Engine.RevokeAPIKey(ctx, caller, args[0])
			})
		},
	}
	keys.AddCommand(create, list, revoke)
	return keys
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var legacyActor, devLogin bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			authCfg := server.AuthConfig{
				JWTSecret:              os.Getenv("EARLYADOPTERS_JWT_SECRET"),
				AllowLegacyActorHeader: legacyActor,
				DevLogin:               devLogin,
			}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("EARLYADOPTERS_JWT_SECRET is required for bearer auth")
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				authCfg.Logger = rt.Log
				handler, err := server.New(server.Config{
					Engine:   rt.Engine,
					Gate:     rt.Gate,
					Store:    rt.Store,
					Metrics:  rt.Metrics,
					BasePath: basePath,
					Auth:     authCfg,
				})
				if err != nil {
					return err
				}
				server.StartWebhookDispatcher(ctx, rt.Engine)
				srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				rt.Log.WithField("addr", addr).Infof("serving early adopters API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs, metrics at /metrics)", addr, basePath, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().BoolVar(&legacyActor, "allow-legacy-actor-header", false, "accept the unauthenticated X-Actor-Id header")
	cmd.Flags().BoolVar(&devLogin, "dev-login", false, "mount POST /auth/dev/login, which mints a token for any address (local development only)")
	return cmd
}

func withRuntime(ctx context.Context, fn func(context.Context, *app.Runtime) error) error {
	rt, err := app.Open(ctx, viper.GetString("workspace"), app.Options{})
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(ctx, rt)
}

// actor returns the caller for mutating commands.
func actor() (string, error) {
	a := strings.TrimSpace(viper.GetString("actor"))
	if a == "" {
		return "", fmt.Errorf("--actor (or EARLYADOPTERS_ACTOR) required")
	}
	return chain.AddressFromDID(a)
}

func parseProjectID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid project id %q", s)
	}
	return id, nil
}

func parseActivityRef(project, index string) (int64, int, error) {
	id, err := parseProjectID(project)
	if err != nil {
		return 0, 0, err
	}
	idx, err := strconv.Atoi(index)
	if err != nil || idx < 0 {
		return 0, 0, fmt.Errorf("invalid activity index %q", index)
	}
	return id, idx, nil
}

func parseAmountFlags(value, wei string, c chain.Chain) (amount *big.Int, err error) {
	switch {
	case value != "" && wei != "":
		return nil, fmt.Errorf("set either --value or --wei")
	case value != "":
		return chain.ParseAmount(value, c.Decimals)
	case wei != "":
		return chain.ParseWei(wei)
	default:
		return nil, fmt.Errorf("--value or --wei required")
	}
}

func printReward(r domain.Reward, c chain.Chain) error {
	return printJSONOrTable(r, func(tw table.Writer) {
		tw.SetTitle(fmt.Sprintf("project %d: %s wei, share %s, remainder %s", r.ProjectID, r.Value, r.Share, r.Remainder))
		tw.AppendHeader(table.Row{"Recipient", "Wei", c.Currency})
		for _, p := range r.Payouts {
			wei, _ := chain.ParseWei(p.Amount)
			tw.AppendRow(table.Row{p.Recipient, p.Amount, chain.FormatAmount(wei, c.Decimals)})
		}
	})
}

// printJSONOrTable prints JSON when --json is set or no table renderer is
// given; otherwise it renders a table.
func printJSONOrTable(v any, render func(table.Writer)) error {
	if viper.GetBool("json") || render == nil {
		return printJSON(v)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	render(tw)
	tw.Render()
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
