package classifier

import (
	"testing"

	"github.com/lexian24/autolabel/pkg/types"
)

func human(value string) types.ConversationTurn {
	return types.ConversationTurn{From: types.SpeakerHuman, Value: value}
}

func gpt(value string) types.ConversationTurn {
	return types.ConversationTurn{From: types.SpeakerModel, Value: value}
}

func TestPairAndClassifyPartition(t *testing.T) {
	turns := []types.ConversationTurn{
		human("Find the boats."),
		gpt("There are <p>ship</p>[0.38,0.12,0.42,0.04] and <p>boat</p>[0.1,0.2,0.15,0.18] in the image."),
		human("Describe the scene."),
		gpt("A harbor at dusk."),
	}

	res := PairAndClassify(turns)

	// Every turn lands in exactly one partition.
	if len(res.Grounding)+len(res.Text) != len(turns) {
		t.Fatalf("partition lost turns: %d + %d != %d", len(res.Grounding), len(res.Text), len(turns))
	}
	if len(res.Grounding) != 2 || len(res.Text) != 2 {
		t.Errorf("expected 2 grounding + 2 text turns, got %d + %d", len(res.Grounding), len(res.Text))
	}
	if res.Stats.TotalTurns != 4 || res.Stats.GroundingUnits != 1 || res.Stats.TextUnits != 1 {
		t.Errorf("unexpected stats %+v", res.Stats)
	}
	if res.Stats.TotalAnnotations != 2 {
		t.Errorf("expected 2 annotations counted, got %d", res.Stats.TotalAnnotations)
	}
}

func TestPairAndClassifyLoneTurns(t *testing.T) {
	turns := []types.ConversationTurn{
		gpt("Unprompted response."),
		human("Find the cat."),
		gpt("There is <p>cat</p>[0.1,0.1,0.5,0.5] in the image."),
		human("Trailing question with no answer."),
	}

	res := PairAndClassify(turns)

	if len(res.Grounding) != 2 {
		t.Errorf("expected 1 grounding pair, got %d turns", len(res.Grounding))
	}
	if len(res.Text) != 2 {
		t.Errorf("expected 2 lone text turns, got %d", len(res.Text))
	}
	// Each lone turn counts as its own text unit.
	if res.Stats.TextUnits != 2 {
		t.Errorf("expected 2 text units, got %d", res.Stats.TextUnits)
	}
	if res.Stats.GroundingUnits != 1 {
		t.Errorf("expected 1 grounding unit, got %d", res.Stats.GroundingUnits)
	}
}

func TestPairAndClassifyGreedyNoBacktrack(t *testing.T) {
	// gpt followed by human: the gpt turn is consumed alone, then the
	// (human, gpt) pair forms normally.
	turns := []types.ConversationTurn{
		gpt("orphan"),
		human("Find it."),
		gpt("There is <p>it</p>[0.2,0.2,0.4,0.4] in the image."),
	}

	res := PairAndClassify(turns)
	if len(res.Text) != 1 || res.Text[0].Value != "orphan" {
		t.Errorf("expected orphan gpt turn in text partition, got %+v", res.Text)
	}
	if res.Stats.GroundingUnits != 1 {
		t.Errorf("expected the following pair to still ground, got %+v", res.Stats)
	}
}

func TestPairAndClassifyConsecutiveHumans(t *testing.T) {
	turns := []types.ConversationTurn{
		human("first question"),
		human("second question"),
		gpt("There is <p>dog</p>[0.1,0.1,0.3,0.3] in the image."),
	}

	res := PairAndClassify(turns)
	// First human is lone; second pairs with the gpt turn.
	if len(res.Text) != 1 || res.Text[0].Value != "first question" {
		t.Errorf("expected first human alone in text, got %+v", res.Text)
	}
	if res.Stats.GroundingUnits != 1 {
		t.Errorf("expected second human to pair, got %+v", res.Stats)
	}
}

func TestPairAndClassifyEmpty(t *testing.T) {
	res := PairAndClassify(nil)
	if res.Grounding == nil || res.Text == nil {
		t.Error("partitions should be empty slices, not nil")
	}
	if res.Stats.TotalTurns != 0 {
		t.Errorf("unexpected stats %+v", res.Stats)
	}
}

func TestReconstructPromptHistoryAttributes(t *testing.T) {
	turns := []types.ConversationTurn{
		{From: types.SpeakerHuman, Value: "Find and locate all cars", Attribute: "Grounding"},
		gpt("There is <p>car</p>[0.1,0.2,0.4,0.6] in the image."),
		{From: types.SpeakerHuman, Value: "What is in this region?", Attribute: "Region Captioning"},
		gpt("A parked truck."),
		{From: types.SpeakerHuman, Value: "Describe the image", Attribute: "Image Captioning"},
		gpt("A parking lot."),
	}

	history := ReconstructPromptHistory(turns)
	if len(history) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(history))
	}

	if history[0].Type != types.EntryAILabeling || history[0].Category != types.CategoryGrounding {
		t.Errorf("entry 0: got type=%s category=%s", history[0].Type, history[0].Category)
	}
	if history[0].DetectionCount != 1 || len(history[0].DetectedLabels) != 1 || history[0].DetectedLabels[0] != "car" {
		t.Errorf("entry 0: unexpected labels %+v", history[0])
	}

	if history[1].Type != types.EntryBboxDescription || history[1].Category != types.CategoryGrounding {
		t.Errorf("entry 1: got type=%s category=%s", history[1].Type, history[1].Category)
	}

	if history[2].Type != types.EntryText || history[2].Category != types.CategoryCaption {
		t.Errorf("entry 2: got type=%s category=%s", history[2].Type, history[2].Category)
	}
}

func TestReconstructPromptHistoryInference(t *testing.T) {
	// No attribute tags; category comes from response content and phrasing.
	turns := []types.ConversationTurn{
		human("Detect and locate every ship"),
		gpt("There is <p>ship</p>[0.3,0.3,0.6,0.6] in the image."),
		human("Please locate the buoy"),
		gpt("There is <p>buoy</p>[0.5,0.5] in the image."),
		human("Outline the dock"),
		gpt("There is <p>dock</p>[0.0,0.7,1.0,1.0] in the image."),
		human("What time of day is it?"),
		gpt("Early morning."),
	}

	history := ReconstructPromptHistory(turns)
	if len(history) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(history))
	}

	wantTypes := []string{
		types.EntryAILabeling,
		types.EntryObjectDetection,
		types.EntryGrounding,
		types.EntryText,
	}
	for i, want := range wantTypes {
		if history[i].Type != want {
			t.Errorf("entry %d: type = %s, want %s", i, history[i].Type, want)
		}
	}
	for i := 0; i < 3; i++ {
		if history[i].Category != types.CategoryGrounding {
			t.Errorf("entry %d: expected grounding category, got %s", i, history[i].Category)
		}
	}
	if history[3].Category != types.CategoryCaption {
		t.Errorf("entry 3: expected caption category, got %s", history[3].Category)
	}
}

func TestReconstructPromptHistoryGroundingAttributeWithoutTags(t *testing.T) {
	turns := []types.ConversationTurn{
		{From: types.SpeakerHuman, Value: "Find the griffin", Attribute: "Grounding"},
		gpt("I don't see any specific objects to detect in this image."),
	}

	history := ReconstructPromptHistory(turns)
	if len(history) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(history))
	}
	if history[0].Type != types.EntryGrounding || history[0].Category != types.CategoryGrounding {
		t.Errorf("got type=%s category=%s", history[0].Type, history[0].Category)
	}
	if history[0].DetectionCount != 0 || history[0].DetectedLabels != nil {
		t.Errorf("expected no detections, got %+v", history[0])
	}
}

func TestReconstructPromptHistorySkipsUnpaired(t *testing.T) {
	turns := []types.ConversationTurn{
		gpt("orphan response"),
		human("Find the cat"),
		gpt("There is <p>cat</p>[0.1,0.1,0.2,0.2] in the image."),
	}

	history := ReconstructPromptHistory(turns)
	if len(history) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(history))
	}
	if history[0].Prompt != "Find the cat" {
		t.Errorf("unexpected prompt %q", history[0].Prompt)
	}
}
