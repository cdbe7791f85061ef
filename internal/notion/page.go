package notion

import (
	"learntracker/internal/domain"

	"github.com/jomei/notionapi"
)

const (
	maxRichText   = 2000
	articleType   = "Article"
	doneStatus    = "Done"
	insightsLabel = "Key insights"
	summaryEmoji  = notionapi.Emoji("📝")
)

func (s *Store) page(record domain.SummaryRecord) *notionapi.PageCreateRequest {
	tags := make([]notionapi.Option, 0, len(record.Tags)+1)
	for _, tag := range record.Tags {
		tags = append(tags, notionapi.Option{Name: sanitizeTag(tag)})
	}
	tags = append(tags, notionapi.Option{Name: identityTag(record.Identity)})

	properties := notionapi.Properties{
		"Name":   notionapi.TitleProperty{Title: splitRichText(record.Title)},
		"Type":   notionapi.SelectProperty{Select: notionapi.Option{Name: articleType}},
		"Status": notionapi.SelectProperty{Select: notionapi.Option{Name: doneStatus}},
		"Tags":   notionapi.MultiSelectProperty{MultiSelect: tags},
	}

	if isURL(record.Identity) {
		properties["URL"] = notionapi.URLProperty{URL: record.Identity}
	}
	if record.Source != "" {
		properties["Source"] = notionapi.RichTextProperty{RichText: splitRichText(record.Source)}
	}

	return &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       "database_id",
			DatabaseID: s.databaseID,
		},
		Properties: properties,
		Children:   pageBlocks(record),
	}
}

func pageBlocks(record domain.SummaryRecord) []notionapi.Block {
	emoji := summaryEmoji

	blocks := []notionapi.Block{
		&notionapi.CalloutBlock{
			BasicBlock: notionapi.BasicBlock{Object: "block", Type: "callout"},
			Callout: notionapi.Callout{
				RichText: splitRichText(record.Summary),
				Icon:     &notionapi.Icon{Type: "emoji", Emoji: &emoji},
				Color:    "gray_background",
			},
		},
		&notionapi.DividerBlock{
			BasicBlock: notionapi.BasicBlock{Object: "block", Type: "divider"},
		},
		&notionapi.Heading2Block{
			BasicBlock: notionapi.BasicBlock{Object: "block", Type: "heading_2"},
			Heading2:   notionapi.Heading{RichText: splitRichText(insightsLabel)},
		},
	}

	for _, insight := range record.KeyInsights {
		blocks = append(blocks, &notionapi.BulletedListItemBlock{
			BasicBlock:       notionapi.BasicBlock{Object: "block", Type: "bulleted_list_item"},
			BulletedListItem: notionapi.ListItem{RichText: splitRichText(insight)},
		})
	}

	return blocks
}

// splitRichText cuts text into rich text items of at most 2000 runes each.
func splitRichText(text string) []notionapi.RichText {
	runes := []rune(text)
	if len(runes) == 0 {
		return []notionapi.RichText{newRichText("")}
	}

	var items []notionapi.RichText
	for len(runes) > 0 {
		n := min(len(runes), maxRichText)
		items = append(items, newRichText(string(runes[:n])))
		runes = runes[n:]
	}

	return items
}

func newRichText(content string) notionapi.RichText {
	return notionapi.RichText{
		Type: "text",
		Text: &notionapi.Text{Content: content},
	}
}

// sanitizeTag drops commas, which Notion rejects in select option names.
func sanitizeTag(tag string) string {
	runes := make([]rune, 0, len(tag))
	for _, r := range tag {
		if r == ',' {
			continue
		}
		runes = append(runes, r)
	}
	if len(runes) > 100 {
		runes = runes[:100]
	}
	return string(runes)
}
