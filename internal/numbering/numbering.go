// Package numbering issues human-readable invoice and receipt numbers.
package numbering

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/kicksnairobi/footwear-backend/pkg/logger"
)

const (
	PrefixInvoice = "INV"
	PrefixReceipt = "RCT"

	sequenceTTL = 48 * time.Hour
	// fallback suffixes start above the daily counter range
	fallbackFloor = 90000
	fallbackSpan  = 10000
)

type sequencer interface {
	NextSequence(ctx context.Context, name string, ttl time.Duration) (int64, error)
}

// Generator formats numbers as PREFIX-YYYYMMDD-NNNNN from a daily redis
// counter. When redis is unavailable a random suffix is used; callers rely on
// the unique column to catch the rare collision.
type Generator struct {
	seq  sequencer
	logg *logger.Logger
	now  func() time.Time
}

func NewGenerator(seq sequencer, logg *logger.Logger) *Generator {
	return &Generator{seq: seq, logg: logg, now: time.Now}
}

// Invoice returns the next invoice number.
func (g *Generator) Invoice(ctx context.Context) string {
	return g.next(ctx, PrefixInvoice)
}

// Receipt returns the next receipt number.
func (g *Generator) Receipt(ctx context.Context) string {
	return g.next(ctx, PrefixReceipt)
}

func (g *Generator) next(ctx context.Context, prefix string) string {
	day := g.now().UTC().Format("20060102")
	if g.seq != nil {
		name := strings.ToLower(prefix) + ":" + day
		n, err := g.seq.NextSequence(ctx, name, sequenceTTL)
		if err == nil && n > 0 {
			return Format(prefix, day, n)
		}
		if err != nil && g.logg != nil {
			g.logg.Warn(g.logg.WithField(ctx, "prefix", prefix), "sequence unavailable, using random suffix: "+err.Error())
		}
	}
	return Format(prefix, day, fallbackFloor+randomInt(fallbackSpan))
}

// Format renders a number with a zero-padded five digit suffix.
func Format(prefix, day string, n int64) string {
	return fmt.Sprintf("%s-%s-%05d", prefix, day, n)
}

func randomInt(span int64) int64 {
	v, err := rand.Int(rand.Reader, big.NewInt(span))
	if err != nil {
		return time.Now().UnixNano() % span
	}
	return v.Int64()
}
