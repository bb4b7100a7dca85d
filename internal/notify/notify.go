package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rolescout/internal/model"
	"github.com/sells-group/rolescout/internal/store"
)

const (
	pageSize = 500

	// externalIDProperty is the rich-text column the upsert keys on. One
	// Notion page per role, matched by source feed id.
	externalIDProperty = "External ID"
)

// SyncStats summarizes one sync pass.
type SyncStats struct {
	Total   int `json:"total"`
	Created int `json:"created"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

// Syncer upserts qualified roles into a Notion database.
type Syncer struct {
	store  store.Store
	client Client
	dbID   string
	log    *zap.Logger
}

// NewSyncer creates a Syncer targeting the given Notion database.
func NewSyncer(s store.Store, client Client, dbID string) *Syncer {
	return &Syncer{
		store:  s,
		client: client,
		dbID:   dbID,
		log:    zap.L().With(zap.String("component", "notify")),
	}
}

// Sync upserts every QUALIFIED role as a Notion page. A failure on one role
// is logged and counted; it never aborts the pass.
func (sy *Syncer) Sync(ctx context.Context) (SyncStats, error) {
	var stats SyncStats

	for offset := 0; ; offset += pageSize {
		roles, err := sy.store.ListRoles(ctx, store.RoleFilter{
			Tier:   model.TierQualified,
			Limit:  pageSize,
			Offset: offset,
		})
		if err != nil {
			return stats, eris.Wrap(err, "notify: list qualified roles")
		}
		if len(roles) == 0 {
			break
		}

		for i := range roles {
			stats.Total++
			created, err := sy.upsertRole(ctx, &roles[i])
			if err != nil {
				stats.Failed++
				sy.log.Warn("role sync failed",
					zap.String("external_id", roles[i].ExternalID),
					zap.Error(err))
				continue
			}
			if created {
				stats.Created++
			} else {
				stats.Updated++
			}
		}

		if len(roles) < pageSize {
			break
		}
	}

	sy.log.Info("notion sync finished",
		zap.Int("total", stats.Total),
		zap.Int("created", stats.Created),
		zap.Int("updated", stats.Updated),
		zap.Int("failed", stats.Failed))
	return stats, nil
}

// upsertRole creates or updates the page keyed by the role's external id.
// Returns true when a new page was created.
func (sy *Syncer) upsertRole(ctx context.Context, role *model.Role) (bool, error) {
	pageID, err := sy.findPage(ctx, role.ExternalID)
	if err != nil {
		return false, err
	}

	props := roleProperties(role)

	if pageID == "" {
		_, err := sy.client.CreatePage(ctx, &notionapi.PageCreateRequest{
			Parent: notionapi.Parent{
				Type:       notionapi.ParentTypeDatabaseID,
				DatabaseID: notionapi.DatabaseID(sy.dbID),
			},
			Properties: props,
		})
		if err != nil {
			return false, eris.Wrapf(err, "notify: create page for %s", role.ExternalID)
		}
		return true, nil
	}

	_, err = sy.client.UpdatePage(ctx, pageID, &notionapi.PageUpdateRequest{
		Properties: props,
	})
	if err != nil {
		return false, eris.Wrapf(err, "notify: update page for %s", role.ExternalID)
	}
	return false, nil
}

// findPage returns the id of the existing page for externalID, or "".
func (sy *Syncer) findPage(ctx context.Context, externalID string) (string, error) {
	resp, err := sy.client.QueryDatabase(ctx, sy.dbID, &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: externalIDProperty,
			RichText: &notionapi.TextFilterCondition{Equals: externalID},
		},
		PageSize: 1,
	})
	if err != nil {
		return "", eris.Wrapf(err, "notify: find page for %s", externalID)
	}
	if len(resp.Results) == 0 {
		return "", nil
	}
	return string(resp.Results[0].ID), nil
}

// roleProperties builds the Notion property map for one role.
func roleProperties(role *model.Role) notionapi.Properties {
	p := role.Payload

	title := p.Name
	if title == "" {
		title = role.ExternalID
	}

	props := notionapi.Properties{
		"Name": notionapi.TitleProperty{
			Title: richText(title),
		},
		externalIDProperty: notionapi.RichTextProperty{
			RichText: richText(role.ExternalID),
		},
		"Company": notionapi.RichTextProperty{
			RichText: richText(p.CompanyName()),
		},
		"Tier": notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(role.Tier)},
		},
		"Salary ($K)": notionapi.RichTextProperty{
			RichText: richText(salaryBand(p.SalaryUpperBound)),
		},
		"URL": notionapi.URLProperty{
			URL: roleURL(p.CompanyName(), role.ExternalID),
		},
	}

	if role.CombinedScore != nil {
		props["Combined Score"] = notionapi.NumberProperty{Number: *role.CombinedScore}
	}
	if p.PercentFee != nil {
		props["Fee %"] = notionapi.NumberProperty{Number: *p.PercentFee}
	}
	if !role.LastSeenAt.IsZero() {
		seen := notionapi.Date(role.LastSeenAt.UTC())
		props["Last Seen"] = notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &seen},
		}
	}

	return props
}

func richText(s string) []notionapi.RichText {
	return []notionapi.RichText{{Text: &notionapi.Text{Content: s}}}
}

// salaryBand renders the upper salary bound in thousands ("225"), or an
// em dash when the feed gave no figure. Column headers carry the unit.
func salaryBand(upper *float64) string {
	if upper == nil || *upper <= 0 {
		return "—"
	}
	return fmt.Sprintf("%d", int64(*upper)/1000)
}

// roleURL reconstructs the public listing URL from the company slug and id.
func roleURL(companyName, externalID string) string {
	slug := strings.ReplaceAll(strings.ToLower(companyName), " ", "-")
	return fmt.Sprintf("https://www.paraform.com/company/%s/%s", slug, externalID)
}
