package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/urfave/cli/v3"

	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/attivita"
	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/consumer"
	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/datewindow"
	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/events"
	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/reconcile"
)

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "Print the activities of the user",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "from", Usage: "First date (YYYY-MM-DD)"},
			&cli.StringFlag{Name: "to", Usage: "Last date (YYYY-MM-DD)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := setup(ctx, cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			filter := attivita.Filter{UserID: e.cfg.UserID, From: cmd.String("from"), To: cmd.String("to")}
			for _, bound := range []string{filter.From, filter.To} {
				if bound == "" {
					continue
				}
				if _, err := attivita.ParseDate(bound); err != nil {
					return err
				}
			}
			rows, _, err := e.store.Load(ctx, filter, true)
			if err != nil {
				return err
			}
			stdout(renderRows(rows, e.window))
			return nil
		},
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Mount the activity table and print it on every change",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "period", Usage: "Expanded view period: all, month, quarter or custom"},
			&cli.StringFlag{Name: "from", Usage: "Custom period start"},
			&cli.StringFlag{Name: "to", Usage: "Custom period end"},
			&cli.BoolFlag{Name: "kafka", Usage: "Reload when activity events arrive from Kafka"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := setup(ctx, cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			r := e.reconciler()
			if err := r.Mount(ctx); err != nil {
				return err
			}
			defer r.Unmount()

			if cmd.IsSet("period") {
				period, err := datewindow.ParsePeriod(cmd.String("period"), cmd.String("from"), cmd.String("to"))
				if err != nil {
					return err
				}
				if err := r.SetPeriod(period); err != nil {
					return err
				}
				if err := r.SetExpanded(true); err != nil {
					return err
				}
			}

			if cmd.Bool("kafka") {
				go e.invalidateFromKafka(ctx)
			}

			for {
				select {
				case <-ctx.Done():
					return r.Flush()
				case <-r.Changes():
					v, err := r.View()
					if err != nil {
						return err
					}
					stdout(renderView(v, e.window))
				}
			}
		},
	}
}

// invalidateFromKafka bumps the store on events about the user. Each watcher reads
// through its own consumer group so every process sees every event.
func (e *env) invalidateFromKafka(ctx context.Context) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     e.cfg.KafkaBrokers,
		GroupID:     "attivita-watch-" + uuid.NewString(),
		Topic:       events.Topic,
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     time.Second,
	})
	defer reader.Close()

	logger := e.logger.WithPrefix("consumer")
	handler := consumer.NewInvalidationHandler(e.store, e.cfg.UserID, consumer.WithInvalidationLogger(logger))
	if err := consumer.NewProcessor(reader, handler, consumer.WithLogger(logger)).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		e.logger.Error("kafka invalidation stopped", "err", err)
	}
}

func setCommand() *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "Edit one field of a row (data, cliente, rimborso, km, indennita)",
		ArgsUsage: "<key> <field> <value>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 3 {
				return fmt.Errorf("usage: attivita set <key> <field> <value>")
			}
			key, name, value := cmd.Args().Get(0), cmd.Args().Get(1), cmd.Args().Get(2)
			field, ok := attivita.ParseField(name)
			if !ok {
				return fmt.Errorf("unknown field %q", name)
			}

			e, err := setup(ctx, cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			v, err := e.mounted(ctx, func(r *reconcile.Reconciler) error {
				return e.applyField(ctx, r, key, field, value)
			})
			if err != nil {
				return err
			}
			stdout(renderView(v, e.window))
			return nil
		},
	}
}

// applyField routes client names through the registry so a known client is linked by
// id. A name without an exact match is offered the closest registered clients.
func (e *env) applyField(ctx context.Context, r *reconcile.Reconciler, key string, field attivita.Field, value string) error {
	if field == attivita.FieldClient && strings.TrimSpace(value) != "" {
		client, found, err := e.catalog.Resolve(ctx, value)
		if err != nil {
			e.logger.Warn("client registry unavailable", "err", err)
			return r.UpdateField(key, field, value)
		}
		if !found {
			client, found = e.pickClient(ctx, value)
		}
		if found {
			return r.SelectClient(key, client.ID, client.Name)
		}
	}
	return r.UpdateField(key, field, value)
}

func submitCommand() *cli.Command {
	return &cli.Command{
		Name:      "submit",
		Usage:     "Save a row now, failing when a required field is missing",
		ArgsUsage: "<key>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return fmt.Errorf("usage: attivita submit <key>")
			}
			key := cmd.Args().Get(0)

			e, err := setup(ctx, cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			v, err := e.mounted(ctx, func(r *reconcile.Reconciler) error {
				return r.Submit(key)
			})
			if err != nil {
				return err
			}
			stdout(renderView(v, e.window))
			return nil
		},
	}
}

func addCommand() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Add a row for a date; it is saved once a field is set",
		ArgsUsage: "<date>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "cliente", Usage: "Client name"},
			&cli.StringFlag{Name: "rimborso", Usage: "Activity kind"},
			&cli.StringFlag{Name: "km", Usage: "Kilometres"},
			&cli.BoolFlag{Name: "indennita", Usage: "Daily allowance"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return fmt.Errorf("usage: attivita add <date>")
			}
			date := cmd.Args().Get(0)
			if _, err := attivita.ParseDate(date); err != nil {
				return err
			}

			e, err := setup(ctx, cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			edits := make([][2]string, 0, 4)
			for _, name := range []string{"cliente", "rimborso", "km"} {
				if cmd.IsSet(name) {
					edits = append(edits, [2]string{name, cmd.String(name)})
				}
			}
			if cmd.IsSet("indennita") {
				edits = append(edits, [2]string{"indennita", fmt.Sprint(cmd.Bool("indennita"))})
			}
			if len(edits) == 0 {
				return fmt.Errorf("set at least one of --cliente, --rimborso, --km, --indennita")
			}

			v, err := e.mounted(ctx, func(r *reconcile.Reconciler) error {
				key, err := r.AddRow(date)
				if err != nil {
					return err
				}
				for _, edit := range edits {
					field, _ := attivita.ParseField(edit[0])
					if err := e.applyField(ctx, r, key, field, edit[1]); err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
			stdout(renderView(v, e.window))
			return nil
		},
	}
}

func deleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a row",
		ArgsUsage: "<key>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Do not ask for confirmation"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return fmt.Errorf("usage: attivita delete <key>")
			}
			key := cmd.Args().Get(0)

			e, err := setup(ctx, cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			confirm := reconcile.ConfirmFunc(func(row attivita.Row) bool {
				if cmd.Bool("yes") {
					return true
				}
				return promptYes(fmt.Sprintf("Eliminare l'attività del %s (%s)? [s/N] ", row.Date, row.ClientName))
			})
			v, err := e.mounted(ctx, func(r *reconcile.Reconciler) error {
				return r.DeleteRow(key)
			}, reconcile.WithConfirmer(confirm))
			if errors.Is(err, reconcile.ErrDeleteCancelled) {
				stdout("annullato")
				return nil
			}
			if err != nil {
				return err
			}
			stdout(renderView(v, e.window))
			return nil
		},
	}
}

func promptYes(question string) bool {
	fmt.Fprint(os.Stderr, question)
	answer, err := bufio.NewReader(input).ReadString('\n')
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "s", "si", "sì", "y", "yes":
		return true
	}
	return false
}

func clientsCommand() *cli.Command {
	return &cli.Command{
		Name:      "clients",
		Usage:     "Suggest registered clients matching a query",
		ArgsUsage: "[query]",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Value: 10, Usage: "Maximum suggestions"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := setup(ctx, cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			clients, err := e.catalog.Suggest(ctx, strings.Join(cmd.Args().Slice(), " "), int(cmd.Int("limit")))
			if err != nil {
				return err
			}
			stdout(renderClients(clients))
			return nil
		},
	}
}
