package commands

import (
	"context"
	"math"
	"regexp"
	"strconv"
	"strings"

	"stockwatch-telegram-bot/internal/types"
	"stockwatch-telegram-bot/lib/helpers"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var (
	addSymbolPattern = regexp.MustCompile(`^[A-Z0-9.\-^=]{1,20}$`)

	errAddUsage = errors.New("invalid /add arguments")
)

var directions = map[string]bool{
	"上":     true,
	"up":    true,
	"above": true,
	"下":     false,
	"down":  false,
	"below": false,
}

type addRequest struct {
	symbol string
	target float64
	kind   types.Kind
}

// parseAddArguments reads "SYMBOL TARGET DIRECTION", where TARGET is a price
// or a percent magnitude with a trailing %.
func parseAddArguments(args string) (addRequest, error) {
	fields := strings.Fields(args)
	if len(fields) < 3 {
		return addRequest{}, errAddUsage
	}

	symbol := strings.ToUpper(fields[0])
	if !addSymbolPattern.MatchString(symbol) {
		return addRequest{}, errors.Wrapf(errAddUsage, "symbol %q", fields[0])
	}

	up, ok := directions[strings.ToLower(fields[2])]
	if !ok {
		return addRequest{}, errors.Wrapf(errAddUsage, "direction %q", fields[2])
	}

	raw := fields[1]
	percent := strings.HasSuffix(raw, "%")
	raw = strings.TrimSuffix(raw, "%")

	target, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(target) || math.IsInf(target, 0) || target < 0 {
		return addRequest{}, errors.Wrapf(errAddUsage, "target %q", fields[1])
	}

	var kind types.Kind
	switch {
	case percent && up:
		kind = types.KindPctChangeAbove
	case percent:
		kind = types.KindPctChangeBelow
	case up:
		kind = types.KindPriceAbove
	default:
		kind = types.KindPriceBelow
	}

	return addRequest{symbol: symbol, target: target, kind: kind}, nil
}

// describeWatch renders the condition of a watch, e.g. "AAPL rises above *180*".
func describeWatch(w types.Watch) string {
	symbol := helpers.EscapeMarkdownV2(w.Symbol)
	if _, err := types.ParseKind(string(w.Kind)); err != nil {
		return symbol
	}

	if w.Kind.IsPercent() {
		target := bold(helpers.FormatPercentage(w.Target))
		if w.Kind.IsUp() {
			return tr("%s up more than %s today", symbol, target)
		}
		return tr("%s down more than %s today", symbol, target)
	}

	target := bold(helpers.FormatNumber(w.Target))
	if w.Kind.IsUp() {
		return tr("%s rises above %s", symbol, target)
	}
	return tr("%s falls below %s", symbol, target)
}

func (h *Handler) CommandAdd(ctx context.Context, ownerID int64, args string) string {
	log.Debugf("processing command /add with argument :%s", args)

	req, err := parseAddArguments(args)
	if err != nil {
		log.Debugf("rejecting /add from %d: %v", ownerID, err)
		return tr("Wrong format! Examples:\n/add AAPL 180 up\n/add 000001.SH 6% down")
	}

	id, err := h.store.Add(ctx, ownerID, req.symbol, req.target, req.kind)
	if err != nil {
		log.Errorf("failed to save watch for %d: %v", ownerID, err)
		return storeFailed()
	}

	w := types.Watch{ID: id, OwnerID: ownerID, Symbol: req.symbol, Target: req.target, Kind: req.kind}
	return tr("✅ Added watch %s: %s", strconv.FormatInt(id, 10), describeWatch(w))
}

func (h *Handler) CommandList(ctx context.Context, ownerID int64) string {
	watches, err := h.store.ListByOwner(ctx, ownerID)
	if err != nil {
		log.Errorf("failed to list watches for %d: %v", ownerID, err)
		return storeFailed()
	}

	if len(watches) == 0 {
		return tr("Nothing here yet")
	}

	var list strings.Builder
	list.WriteString("*" + tr("Watch list:") + "*")
	list.WriteString("\n\n")
	for _, w := range watches {
		line := tr("%s. %s", strconv.FormatInt(w.ID, 10), describeWatch(w))
		if added := helpers.FormatDate(w.CreatedAt); added != "" {
			line += " " + tr("(added %s)", helpers.EscapeMarkdownV2(added))
		}
		list.WriteString(line)
		list.WriteString("\n")
	}
	return list.String()
}

func (h *Handler) CommandDelete(ctx context.Context, ownerID int64, args string) string {
	id, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
	if err != nil || id <= 0 {
		return tr("Usage: /del 3")
	}

	removed, err := h.store.DeleteByID(ctx, id, ownerID)
	if err != nil {
		log.Errorf("failed to delete watch %d for %d: %v", id, ownerID, err)
		return storeFailed()
	}
	if !removed {
		return tr("Watch %s not found", strconv.FormatInt(id, 10))
	}
	return tr("✅ Deleted")
}

func (h *Handler) CommandClear(ctx context.Context, ownerID int64) string {
	n, err := h.store.ClearByOwner(ctx, ownerID)
	if err != nil {
		log.Errorf("failed to clear watches for %d: %v", ownerID, err)
		return storeFailed()
	}
	log.Debugf("cleared %d watches for %d", n, ownerID)
	return tr("🗑 Cleared")
}

func storeFailed() string {
	return tr("❌ Could not save, please try again")
}
