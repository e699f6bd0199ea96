package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"semantic-triage/internal/embeddings"
	"semantic-triage/internal/store"
)

// RegisterIntents encodes intents with enc and saves them to the registry
// under model, so later jobs can ship precomputed vectors.
func RegisterIntents(ctx context.Context, reg store.IntentRegistry, enc embeddings.Encoder, model string, intents []Intent) error {
	if len(intents) == 0 {
		return nil
	}
	texts := make([]string, len(intents))
	for i, in := range intents {
		texts[i] = strings.TrimSpace(in.Text)
	}
	vecs, err := enc.Encode(ctx, texts)
	if err != nil {
		return fmt.Errorf("encode intents: %w", err)
	}
	for i, in := range intents {
		err := reg.SaveIntent(ctx, store.IntentRecord{Name: in.Name, Text: texts[i], Model: model, Vector: vecs[i]})
		if err != nil {
			return fmt.Errorf("save intent %s: %w", in.Name, err)
		}
	}
	return nil
}

// ResolveIntents attaches registered vectors computed by model. Intents that
// are not registered, or were registered for another model or text, are left
// for the workers to encode.
func ResolveIntents(ctx context.Context, reg store.IntentRegistry, model string, intents []Intent) ([]Intent, error) {
	out := make([]Intent, len(intents))
	for i, in := range intents {
		out[i] = in
		rec, err := reg.GetIntent(ctx, in.Name)
		if errors.Is(err, store.ErrIntentNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if rec.Model != model {
			continue
		}
		if in.Text == "" {
			out[i].Text = rec.Text
		} else if strings.TrimSpace(in.Text) != rec.Text {
			continue
		}
		out[i].Vector = rec.Vector
	}
	return out, nil
}
