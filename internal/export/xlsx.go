// Package export writes scored roles to an XLSX workbook: one summary sheet
// plus one sheet per qualification tier.
package export

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/rolescout/internal/model"
	"github.com/sells-group/rolescout/internal/store"
)

const pageSize = 500

// Options selects what to export.
type Options struct {
	Path  string
	Tiers []model.Tier // empty exports every tier
}

var roleColumns = []string{
	"external_id", "name", "company", "tier", "lifecycle_status",
	"combined_score", "engineer_score", "headhunter_score", "excitement_score",
	"salary_upper", "percent_fee", "locations", "last_seen_at",
}

var allTiers = []model.Tier{
	model.TierQualified, model.TierMaybe, model.TierLocationUncertain, model.TierSkip,
}

// WriteWorkbook exports roles into an XLSX file at opts.Path and returns the
// number of roles written. Sheets are ordered summary first, then tiers hot
// to cold.
func WriteWorkbook(ctx context.Context, s store.Store, opts Options) (int, error) {
	tiers := opts.Tiers
	if len(tiers) == 0 {
		tiers = allTiers
	}

	file := xlsx.NewFile()
	summary, err := file.AddSheet("Summary")
	if err != nil {
		return 0, eris.Wrap(err, "export: add summary sheet")
	}
	writeHeader(summary, []string{"tier", "roles", "avg_combined_score"})

	total := 0
	for _, tier := range tiers {
		roles, err := listTier(ctx, s, tier)
		if err != nil {
			return total, err
		}

		sheet, err := file.AddSheet(sheetName(tier))
		if err != nil {
			return total, eris.Wrapf(err, "export: add sheet for %s", tier)
		}
		writeHeader(sheet, roleColumns)

		var scoreSum float64
		var scored int
		for i := range roles {
			writeRole(sheet, &roles[i])
			if roles[i].CombinedScore != nil {
				scoreSum += *roles[i].CombinedScore
				scored++
			}
		}

		row := summary.AddRow()
		row.AddCell().SetString(string(tier))
		row.AddCell().SetInt(len(roles))
		if scored > 0 {
			row.AddCell().SetFloatWithFormat(scoreSum/float64(scored), "0.00")
		} else {
			row.AddCell().SetString("")
		}
		total += len(roles)
	}

	if err := file.Save(opts.Path); err != nil {
		return total, eris.Wrapf(err, "export: save %s", opts.Path)
	}

	zap.L().Info("workbook exported",
		zap.String("path", opts.Path),
		zap.Int("roles", total),
		zap.Int("tiers", len(tiers)))
	return total, nil
}

func listTier(ctx context.Context, s store.Store, tier model.Tier) ([]model.Role, error) {
	var all []model.Role
	for offset := 0; ; offset += pageSize {
		page, err := s.ListRoles(ctx, store.RoleFilter{Tier: tier, Limit: pageSize, Offset: offset})
		if err != nil {
			return nil, eris.Wrapf(err, "export: list %s roles", tier)
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
	}
}

var headerCaser = cases.Title(language.English)

func writeHeader(sheet *xlsx.Sheet, columns []string) {
	row := sheet.AddRow()
	for _, col := range columns {
		row.AddCell().SetString(headerCaser.String(strings.ReplaceAll(col, "_", " ")))
	}
}

func writeRole(sheet *xlsx.Sheet, role *model.Role) {
	row := sheet.AddRow()
	row.AddCell().SetString(role.ExternalID)
	row.AddCell().SetString(role.Payload.Name)
	row.AddCell().SetString(role.Payload.CompanyName())
	row.AddCell().SetString(string(role.Tier))
	row.AddCell().SetString(string(role.Status))
	setScore(row, role.CombinedScore)
	setScore(row, role.EngineerScore)
	setScore(row, role.HeadhunterScore)
	setScore(row, role.ExcitementScore)
	if role.Payload.SalaryUpperBound != nil {
		row.AddCell().SetFloatWithFormat(*role.Payload.SalaryUpperBound, "#,##0")
	} else {
		row.AddCell().SetString("")
	}
	if role.Payload.PercentFee != nil {
		row.AddCell().SetString(fmt.Sprintf("%.1f%%", *role.Payload.PercentFee))
	} else {
		row.AddCell().SetString("")
	}
	row.AddCell().SetString(strings.Join(role.Payload.Locations, ", "))
	row.AddCell().SetString(role.LastSeenAt.UTC().Format("2006-01-02 15:04"))
}

func setScore(row *xlsx.Row, v *float64) {
	if v == nil {
		row.AddCell().SetString("")
		return
	}
	row.AddCell().SetFloatWithFormat(*v, "0.00")
}

// sheetName renders a tier as a human sheet title, e.g. "Location Uncertain".
func sheetName(tier model.Tier) string {
	return headerCaser.String(strings.ReplaceAll(strings.ToLower(string(tier)), "_", " "))
}
