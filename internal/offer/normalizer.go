package offer

import (
	"context"

	"sjsage522/carpriceworker/helpers"
	"sjsage522/carpriceworker/internal/pricing"
	"sjsage522/carpriceworker/internal/taxonomy"
	"sjsage522/carpriceworker/logger"
)

// Options configures a Normalizer. Zero fields get defaults.
type Options struct {
	FX              *pricing.FXConverter
	Policy          pricing.AdjustmentPolicy
	Suppliers       *taxonomy.SupplierResolver
	Mapper          *taxonomy.Mapper
	DefaultCurrency string
}

// Normalizer turns raw listings into canonical offers
type Normalizer struct {
	fx              *pricing.FXConverter
	policy          pricing.AdjustmentPolicy
	suppliers       *taxonomy.SupplierResolver
	mapper          *taxonomy.Mapper
	defaultCurrency string
	log             *logger.Logger
}

// NewNormalizer creates a normalizer
func NewNormalizer(opts Options) *Normalizer {
	n := &Normalizer{
		fx:              opts.FX,
		policy:          opts.Policy,
		suppliers:       opts.Suppliers,
		mapper:          opts.Mapper,
		defaultCurrency: opts.DefaultCurrency,
		log:             logger.ForParser().WithField("stage", "normalize"),
	}
	if n.fx == nil {
		n.fx = pricing.NewFXConverter(nil)
	}
	if n.suppliers == nil {
		n.suppliers = taxonomy.NewSupplierResolver(taxonomy.DefaultAliases)
	}
	if n.mapper == nil {
		n.mapper = taxonomy.NewMapper(taxonomy.DefaultRules)
	}
	if n.defaultCurrency == "" {
		n.defaultCurrency = "EUR"
	}
	return n
}

// Normalize converts raws for a rental of days. Entries without a usable
// price or with a currency that cannot be converted are skipped.
func (n *Normalizer) Normalize(ctx context.Context, raws []RawOffer, days int) []CanonicalOffer {
	out := make([]CanonicalOffer, 0, len(raws))
	for _, raw := range raws {
		o, ok := n.normalizeOne(ctx, raw, days)
		if !ok {
			continue
		}
		out = append(out, o)
	}
	if skipped := len(raws) - len(out); skipped > 0 {
		n.log.Debug().Int("skipped", skipped).Int("kept", len(out)).Msg("Skipped malformed offers")
	}
	return out
}

func (n *Normalizer) normalizeOne(ctx context.Context, raw RawOffer, days int) (CanonicalOffer, bool) {
	amount, ok := pricing.ParseAmount(raw.PriceText)
	if !ok || amount <= 0 {
		return CanonicalOffer{}, false
	}

	currency := pricing.DetectCurrency(raw.PriceText)
	if currency == "" {
		currency = n.defaultCurrency
	}
	eur, err := n.fx.ToEUR(ctx, amount, currency)
	if err != nil {
		n.log.Warn().Err(err).Str("price_text", raw.PriceText).Msg("Dropping offer with unconvertible currency")
		return CanonicalOffer{}, false
	}

	supplier := n.suppliers.Resolve(raw.Supplier)
	eur = n.policy.Apply(supplier, eur)

	name := taxonomy.CleanName(raw.Name)
	label := helpers.FirstNonEmpty(raw.Category, raw.GroupCode, taxonomy.InferCategoryLabel(raw.Text))
	transmission := taxonomy.InferTransmission(raw.Transmission, name, label+" "+raw.Text)
	class := n.mapper.Classify(taxonomy.Input{
		Name:         name,
		Label:        label,
		Text:         raw.Text,
		Transmission: transmission,
	})

	perDay := eur
	if days > 0 {
		perDay = pricing.Round2(eur / float64(days))
	}

	return CanonicalOffer{
		Car:          name,
		Supplier:     supplier,
		Price:        eur,
		PriceText:    pricing.FormatEUR(eur),
		PricePerDay:  perDay,
		Currency:     "EUR",
		Category:     class.Category,
		Group:        class.Group,
		Transmission: transmission,
		Photo:        raw.Photo,
		Link:         raw.Link,
	}, true
}
