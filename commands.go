package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"sjsage522/carpriceworker/internal/crawler"
	"sjsage522/carpriceworker/internal/offer"
	"sjsage522/carpriceworker/internal/pricing"
	"sjsage522/carpriceworker/internal/taxonomy"
	"sjsage522/carpriceworker/internal/tracker"
	"sjsage522/carpriceworker/logger"
	"sjsage522/carpriceworker/services/publisher"
	"sjsage522/carpriceworker/services/worker"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

const pickupLayout = "2006-01-02T15:04"

func init() {
	rootCmd.AddCommand(workerCmd, searchCmd, recommendCmd)

	for _, cmd := range []*cobra.Command{searchCmd, recommendCmd} {
		cmd.Flags().StringP("location", "l", "", "pickup location (required)")
		cmd.Flags().String("pickup", "", "pickup time as "+pickupLayout+" UTC, default lead time from now")
		cmd.Flags().IntP("days", "d", 1, "rental length in days")
		cmd.Flags().String("locale", "", "site locale")
		cmd.Flags().String("currency", "", "display currency requested from the site")
		cmd.Flags().StringSlice("url", nil, "pre-tokenized result URL, repeatable")
		cmd.Flags().String("supplier", "", "supplier to select in the site filter")
		cmd.Flags().Bool("refresh", false, "bypass the result cache")
		cmd.Flags().Bool("json", false, "print JSON instead of a table")
		cmd.MarkFlagRequired("location")
	}

	recommendCmd.Flags().StringSlice("current", nil, "current per-day price as GROUP=amount, repeatable")
	recommendCmd.Flags().String("strategy", pricing.DefaultStrategy.Type, "follow_lowest or follow_average")
	recommendCmd.Flags().String("diff-type", string(pricing.DefaultStrategy.DiffType), "euros or percent")
	recommendCmd.Flags().Float64("diff", pricing.DefaultStrategy.DiffValue, "offset from the reference price")
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Runs the periodic bulk search and publishes snapshots.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := logger.Default

		services, err := initializeServices(ctx, cfg, true)
		if err != nil {
			return err
		}
		defer services.Cleanup()

		job := tracker.BulkRequest{
			Durations:    cfg.Durations,
			SupplierHint: cfg.SupplierFilter,
			ForceRefresh: true,
		}
		for _, loc := range cfg.Locations {
			job.Locations = append(job.Locations, tracker.Location{Name: loc.Name, URLs: loc.URLs})
		}

		log.Info().
			Str("environment", cfg.Environment).
			Dur("crawl_interval", cfg.CrawlInterval).
			Int("locations", len(job.Locations)).
			Ints("durations", job.Durations).
			Msg("Starting price worker")

		w := worker.NewWorker(ctx, services.Tracker, services.Publisher, job, cfg.CrawlInterval, cfg.Environment)
		err = w.Start()

		log.Info().Msg("Shutting down gracefully...")
		return err
	},
}

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Fetches competitor offers for one location and rental length.",
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := requestFromFlags(cmd)
		if err != nil {
			return err
		}
		services, err := initializeServices(cmd.Context(), cfg, false)
		if err != nil {
			return err
		}
		defer services.Cleanup()

		res, err := services.Tracker.Search(cmd.Context(), req)
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(res)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetTitle(fmt.Sprintf("%s  %s  %dd  (%s, %s)",
			res.Location, res.Pickup.Format(pickupLayout), res.Days, res.Reason, res.Cache))
		t.AppendHeader(table.Row{"Group", "Category", "Car", "Supplier", "Price", "Per day"})
		for _, o := range res.Offers {
			t.AppendRow(table.Row{o.Group, o.Category, o.Car, o.Supplier, o.PriceText, pricing.FormatEUR(o.PricePerDay)})
		}
		t.AppendFooter(table.Row{"", "", "", "offers", len(res.Offers), res.Strategy})
		t.SetStyle(table.StyleRounded)
		t.Render()

		if !res.OK() {
			printAttempts(res.Attempts)
		}
		return nil
	},
}

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Recommends per-day prices for each group from competitor offers.",
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := requestFromFlags(cmd)
		if err != nil {
			return err
		}
		opts, err := recommendOptionsFromFlags(cmd)
		if err != nil {
			return err
		}
		services, err := initializeServices(cmd.Context(), cfg, false)
		if err != nil {
			return err
		}
		defer services.Cleanup()

		res, err := services.Tracker.Search(cmd.Context(), req)
		if err != nil {
			return err
		}
		offers := res.Offers
		if !res.OK() && cfg.PostgresDSN != "" {
			offers, err = latestSnapshot(cmd.Context(), res.Location, res.Days)
			if err != nil {
				return err
			}
			logger.Info("Live search returned %s, using %d stored snapshot rows", res.Reason, len(offers))
		}
		recs := tracker.Recommend(res.Location, res.Days, offers, opts)
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(recs)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetTitle(fmt.Sprintf("%s  %dd  %s", res.Location, res.Days, pricing.BookingType(res.Days)))
		t.AppendHeader(table.Row{"Group", "Competitors", "Lowest", "Current", "Recommended", "Strategy", "Floor"})
		for _, r := range recs {
			floor := ""
			if r.FloorApplied {
				floor = fmt.Sprintf("%s (was %s)", r.MinimumType, pricing.FormatEUR(r.OriginalPrice))
			}
			t.AppendRow(table.Row{
				r.Group, r.Competitors, pricing.FormatEUR(r.Lowest), pricing.FormatEUR(r.CurrentPrice),
				pricing.FormatEUR(r.RecommendedPrice), r.Strategy, floor,
			})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()

		if len(recs) == 0 {
			printAttempts(res.Attempts)
		}
		return nil
	},
}

func requestFromFlags(cmd *cobra.Command) (crawler.Request, error) {
	flags := cmd.Flags()
	location, _ := flags.GetString("location")
	pickupRaw, _ := flags.GetString("pickup")
	days, _ := flags.GetInt("days")
	locale, _ := flags.GetString("locale")
	currency, _ := flags.GetString("currency")
	urls, _ := flags.GetStringSlice("url")
	supplier, _ := flags.GetString("supplier")
	refresh, _ := flags.GetBool("refresh")

	if days < 1 {
		return crawler.Request{}, fmt.Errorf("--days must be at least 1, got %d", days)
	}

	req := crawler.Request{
		Location:     location,
		Locale:       locale,
		Currency:     currency,
		URLs:         urls,
		SupplierHint: supplier,
		ForceRefresh: refresh,
	}
	if pickupRaw == "" {
		day := time.Now().UTC().Add(cfg.PickupLead)
		clock, err := time.Parse("15:04", cfg.PickupTime)
		if err != nil {
			clock = time.Date(0, 1, 1, 10, 0, 0, 0, time.UTC)
		}
		req.Pickup = time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, time.UTC)
	} else {
		pickup, err := time.Parse(pickupLayout, pickupRaw)
		if err != nil {
			return crawler.Request{}, fmt.Errorf("invalid --pickup %q: %w", pickupRaw, err)
		}
		req.Pickup = pickup
	}
	req.Dropoff = req.Pickup.AddDate(0, 0, days)
	return req, nil
}

func recommendOptionsFromFlags(cmd *cobra.Command) (tracker.RecommendOptions, error) {
	flags := cmd.Flags()
	current, _ := flags.GetStringSlice("current")
	strategyType, _ := flags.GetString("strategy")
	diffType, _ := flags.GetString("diff-type")
	diff, _ := flags.GetFloat64("diff")

	opts := tracker.RecommendOptions{
		Current:  make(map[taxonomy.Group]float64),
		Strategy: pricing.Strategy{Type: strategyType, DiffType: pricing.DiffType(diffType), DiffValue: diff},
		Floor:    pricing.Floor{Daily: cfg.MinPriceDay, Monthly: cfg.MinPriceMonth},
	}
	for _, entry := range current {
		code, amount, ok := strings.Cut(entry, "=")
		group, known := taxonomy.ParseGroup(code)
		if !ok || !known {
			return opts, fmt.Errorf("invalid --current %q, want GROUP=amount", entry)
		}
		price, ok := pricing.ParseAmount(amount)
		if !ok {
			v, err := strconv.ParseFloat(amount, 64)
			if err != nil {
				return opts, fmt.Errorf("invalid amount in --current %q", entry)
			}
			price = v
		}
		opts.Current[group] = price
	}
	return opts, nil
}

// latestSnapshot reads the newest stored offers for location and days
func latestSnapshot(ctx context.Context, location string, days int) ([]offer.CanonicalOffer, error) {
	store, err := publisher.NewPostgresPublisher(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	rows, err := store.Latest(ctx, location, days)
	if err != nil {
		return nil, err
	}
	offers := make([]offer.CanonicalOffer, 0, len(rows))
	for _, r := range rows {
		offers = append(offers, offer.CanonicalOffer{
			Car:          r.Car,
			Supplier:     r.Supplier,
			Price:        r.Price,
			PriceText:    r.PriceText,
			PricePerDay:  r.PricePerDay,
			Currency:     r.Currency,
			Category:     r.Category,
			Group:        taxonomy.Group(r.Group),
			Transmission: taxonomy.Transmission(r.Transmission),
			Link:         r.Link,
		})
	}
	return offers, nil
}

func printAttempts(attempts []crawler.FetchAttempt) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Strategy", "Outcome", "Tries", "Records", "Elapsed", "Detail"})
	for _, a := range attempts {
		t.AppendRow(table.Row{a.Strategy, a.Outcome, a.Tries, a.Records, a.Elapsed.Round(time.Millisecond), a.Detail})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
