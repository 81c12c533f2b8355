// Package classifier pairs conversation turns into (human, gpt) units and
// partitions them into grounding versus pure-text conversations.
package classifier

import (
	"strings"

	"github.com/lexian24/autolabel/pkg/tagcodec"
	"github.com/lexian24/autolabel/pkg/types"
)

// Result partitions an input turn sequence. Every input turn lands in exactly
// one of Grounding or Text, in original order.
type Result struct {
	Stats     types.Stats
	Grounding []types.ConversationTurn
	Text      []types.ConversationTurn
}

// PairAndClassify walks the turn sequence left to right. A human turn
// directly followed by a gpt turn forms a unit; the unit is grounding when
// the gpt response contains at least one parseable annotation tag. Turns that
// form no valid pair are appended alone to the text partition. The scan is
// greedy and never backtracks.
func PairAndClassify(turns []types.ConversationTurn) Result {
	res := Result{
		Grounding: []types.ConversationTurn{},
		Text:      []types.ConversationTurn{},
	}
	res.Stats.TotalTurns = len(turns)

	i := 0
	for i < len(turns) {
		if turns[i].From == types.SpeakerHuman && i+1 < len(turns) && turns[i+1].From == types.SpeakerModel {
			records := tagcodec.Parse(turns[i+1].Value)
			if len(records) > 0 {
				res.Grounding = append(res.Grounding, turns[i], turns[i+1])
				res.Stats.GroundingUnits++
				res.Stats.TotalAnnotations += len(records)
			} else {
				res.Text = append(res.Text, turns[i], turns[i+1])
				res.Stats.TextUnits++
			}
			i += 2
			continue
		}
		// No valid human->gpt pair here; a lone turn is pure text.
		res.Text = append(res.Text, turns[i])
		res.Stats.TextUnits++
		i++
	}

	return res
}

// detection-request phrasing; "detect and locate" / "find and locate" mark
// the AI-labeling sub-kind, tracked as metadata only
var (
	aiLabelingPhrases = []string{"detect and locate", "find and locate"}
	detectionPhrases  = []string{"detect", "find", "locate"}
)

func containsAny(s string, phrases []string) bool {
	s = strings.ToLower(s)
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// ReconstructPromptHistory rebuilds prompt-history entries from classified
// (human, gpt) pairs. The explicit attribute tag decides the category when
// present; otherwise the category is inferred by re-parsing the gpt response
// for annotations and by phrase heuristics on the human prompt. Unpaired
// turns are skipped.
func ReconstructPromptHistory(turns []types.ConversationTurn) []types.PromptHistoryEntry {
	var history []types.PromptHistoryEntry

	i := 0
	for i < len(turns) {
		if !(turns[i].From == types.SpeakerHuman && i+1 < len(turns) && turns[i+1].From == types.SpeakerModel) {
			i++
			continue
		}

		human, gpt := turns[i], turns[i+1]
		i += 2

		entry := types.PromptHistoryEntry{
			Prompt:      human.Value,
			Description: gpt.Value,
		}

		switch human.Attribute {
		case "Grounding":
			records := tagcodec.Parse(gpt.Value)
			entry.Category = types.CategoryGrounding
			if len(records) > 0 {
				if containsAny(human.Value, aiLabelingPhrases) {
					entry.Type = types.EntryAILabeling
				} else {
					entry.Type = types.EntryObjectDetection
				}
				entry.DetectedLabels = recordLabels(records)
				entry.DetectionCount = len(records)
			} else {
				entry.Type = types.EntryGrounding
			}

		case "Region Captioning":
			// Region captioning is a kind of grounding.
			entry.Type = types.EntryBboxDescription
			entry.Category = types.CategoryGrounding

		case "Image Captioning":
			entry.Type = types.EntryText
			entry.Category = types.CategoryCaption

		default:
			// No attribute tag; infer from content (older files).
			records := tagcodec.Parse(gpt.Value)
			if len(records) > 0 {
				switch {
				case containsAny(human.Value, aiLabelingPhrases):
					entry.Type = types.EntryAILabeling
				case containsAny(human.Value, detectionPhrases):
					entry.Type = types.EntryObjectDetection
				default:
					entry.Type = types.EntryGrounding
				}
				entry.Category = types.CategoryGrounding
				entry.DetectedLabels = recordLabels(records)
				entry.DetectionCount = len(records)
			} else {
				entry.Type = types.EntryText
				entry.Category = types.CategoryCaption
			}
		}

		history = append(history, entry)
	}

	return history
}

func recordLabels(records []types.AnnotationRecord) []string {
	labels := make([]string, len(records))
	for i, r := range records {
		labels[i] = r.Label
	}
	return labels
}
