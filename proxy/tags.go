package proxy

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/remoraproj/remora/field"
	"github.com/remoraproj/remora/internal/cache"
	"github.com/remoraproj/remora/internal/log"
)

// Tagspec grammar: a bare tag name, or "vocabulary:tagname" for tags that
// belong to a controlled vocabulary. Tag names allow letters, digits,
// spaces, hyphens and underscores, 2 to 100 characters.
var (
	tagnameRx = regexp.MustCompile(`^[A-Za-z0-9 _-]{2,100}$`)
	tagspecRx = regexp.MustCompile(`^((.{2,100}):)?([A-Za-z0-9 _-]{2,100})$`)
)

// ValidTagname reports whether s is a well-formed tag name.
func ValidTagname(s string) bool { return tagnameRx.MatchString(s) }

// ValidTagspec reports whether s is a well-formed tagspec.
func ValidTagspec(s string) bool { return tagspecRx.MatchString(s) }

// SplitTagspec splits a tagspec into its vocabulary (empty for free tags)
// and tag name.
func SplitTagspec(spec string) (vocab, name string, err error) {
	m := tagspecRx.FindStringSubmatch(spec)
	if m == nil {
		return "", "", fmt.Errorf("malformed tagspec %q", spec)
	}
	return m[2], m[3], nil
}

// JoinTagspec renders a vocabulary and tag name back into a tagspec.
func JoinTagspec(vocab, name string) string {
	if vocab == "" {
		return name
	}
	return vocab + ":" + name
}

// VocabularyFetcher retrieves the current set of vocabulary entities. Each
// entity carries "id", "name" and a "tags" list of tag entities.
type VocabularyFetcher func(ctx context.Context) ([]Entity, error)

// DefaultVocabularyTTL is how long a vocabulary snapshot stays fresh.
const DefaultVocabularyTTL = 5 * time.Minute

// vocabSnapshot is one decoded fetch of all vocabularies.
type vocabSnapshot struct {
	nameToID   map[string]uuid.UUID
	idToName   map[uuid.UUID]string
	nameToTags map[string]map[string]struct{}
}

const vocabSnapshotKey = "vocabularies"

// VocabularyIndex caches the vocabulary landscape and answers tagspec
// validation queries against it. Snapshots expire after the TTL; anything
// that mutates vocabularies should call Invalidate.
type VocabularyIndex struct {
	ttl   time.Duration
	inner *cache.ReadThrough[string, *vocabSnapshot, struct{}]
}

// NewVocabularyIndex builds an index over the given fetcher.
func NewVocabularyIndex(fetch VocabularyFetcher, ttl time.Duration) *VocabularyIndex {
	if ttl <= 0 {
		ttl = DefaultVocabularyTTL
	}
	mem := cache.NewMemory[string, *vocabSnapshot]("vocabulary-index", ttl, cache.DefaultCleanupInterval)
	loader := func(ctx context.Context, _ struct{}) (*vocabSnapshot, error) {
		entities, err := fetch(ctx)
		if err != nil {
			return nil, fmt.Errorf("vocabulary fetch: %w", err)
		}
		return buildVocabSnapshot(entities)
	}
	return &VocabularyIndex{
		ttl:   ttl,
		inner: cache.NewReadThrough(cache.Manager[string, *vocabSnapshot](mem), loader, false),
	}
}

func buildVocabSnapshot(entities []Entity) (*vocabSnapshot, error) {
	snap := &vocabSnapshot{
		nameToID:   map[string]uuid.UUID{},
		idToName:   map[uuid.UUID]string{},
		nameToTags: map[string]map[string]struct{}{},
	}
	for _, e := range entities {
		name, _ := e["name"].(string)
		if name == "" {
			return nil, fmt.Errorf("vocabulary entity without a name")
		}
		var id uuid.UUID
		if s, ok := e["id"].(string); ok {
			parsed, err := uuid.Parse(s)
			if err != nil {
				return nil, fmt.Errorf("vocabulary %q: bad identifier %q", name, s)
			}
			id = parsed
		}
		snap.nameToID[name] = id
		snap.idToName[id] = name

		tags := map[string]struct{}{}
		if raw, ok := e["tags"].([]any); ok {
			for _, t := range raw {
				switch tv := t.(type) {
				case string:
					tags[tv] = struct{}{}
				case map[string]any:
					if tn, ok := tv["name"].(string); ok {
						tags[tn] = struct{}{}
					}
				}
			}
		}
		snap.nameToTags[name] = tags
	}
	log.Debug(log.CatVocab, "vocabulary snapshot built", "vocabularies", len(snap.nameToID))
	return snap, nil
}

func (vi *VocabularyIndex) snapshot(ctx context.Context) (*vocabSnapshot, error) {
	return vi.inner.Get(ctx, vocabSnapshotKey, struct{}{}, vi.ttl)
}

// ValidateTagspec checks a tagspec against the grammar and, for vocabulary
// tags, against the vocabulary's member tags.
func (vi *VocabularyIndex) ValidateTagspec(ctx context.Context, spec string) error {
	vocab, name, err := SplitTagspec(spec)
	if err != nil {
		return err
	}
	if vocab == "" {
		return nil
	}
	snap, err := vi.snapshot(ctx)
	if err != nil {
		return err
	}
	tags, ok := snap.nameToTags[vocab]
	if !ok {
		return fmt.Errorf("tagspec %q: unknown vocabulary %q", spec, vocab)
	}
	if _, ok := tags[name]; !ok {
		return fmt.Errorf("tagspec %q: vocabulary %q has no tag %q", spec, vocab, name)
	}
	return nil
}

// TagspecToID resolves the vocabulary part of a tagspec to its identifier.
// Free tags resolve to the zero UUID.
func (vi *VocabularyIndex) TagspecToID(ctx context.Context, spec string) (uuid.UUID, string, error) {
	vocab, name, err := SplitTagspec(spec)
	if err != nil {
		return uuid.Nil, "", err
	}
	if vocab == "" {
		return uuid.Nil, name, nil
	}
	snap, err := vi.snapshot(ctx)
	if err != nil {
		return uuid.Nil, "", err
	}
	id, ok := snap.nameToID[vocab]
	if !ok {
		return uuid.Nil, "", fmt.Errorf("tagspec %q: unknown vocabulary %q", spec, vocab)
	}
	return id, name, nil
}

// VocabularyName resolves a vocabulary identifier to its name.
func (vi *VocabularyIndex) VocabularyName(ctx context.Context, id uuid.UUID) (string, error) {
	snap, err := vi.snapshot(ctx)
	if err != nil {
		return "", err
	}
	name, ok := snap.idToName[id]
	if !ok {
		return "", fmt.Errorf("unknown vocabulary %s", id)
	}
	return name, nil
}

// Invalidate drops the cached snapshot; the next query re-fetches.
func (vi *VocabularyIndex) Invalidate(ctx context.Context) error {
	log.Debug(log.CatVocab, "vocabulary snapshot invalidated")
	return vi.inner.Invalidate(ctx, vocabSnapshotKey)
}

// TagList is the tag collection field carried by taggable entity types.
// Stored values are tagspec strings; writes check the grammar eagerly and
// vocabulary membership against the catalog's vocabulary index.
type TagList struct {
	Property
}

// NewTagList declares a tag collection field.
func NewTagList(name string, opts ...PropertyOption) *TagList {
	p := NewProperty(name, field.NewList(newTagspecValidator()), opts...)
	return &TagList{Property: *p}
}

type tagspecValidator struct {
	field.FieldValidator
}

func newTagspecValidator() *tagspecValidator {
	v := &tagspecValidator{FieldValidator: field.NewBase("tagspec", field.NotNullable())}
	v.AddCheck(v.check, field.PriPattern)
	return v
}

func (v *tagspecValidator) check(value any) (any, bool, error) {
	s, ok := value.(string)
	if !ok {
		return nil, false, fmt.Errorf("expected a tagspec string, got %T", value)
	}
	if !ValidTagspec(s) {
		return nil, false, fmt.Errorf("malformed tagspec %q", s)
	}
	return s, true, nil
}

// Set validates the grammar through the list validator and checks
// vocabulary membership against the catalog's index, before anything is
// stored. A rejected write leaves the proxy untouched.
func (f *TagList) Set(ctx context.Context, px *Proxy, value any) error {
	if !IsAbsent(value) && value != nil {
		v, err := f.validator.Validate(value)
		if err != nil {
			return &ConversionError{Field: f.qualName(), Direction: "validate", Err: err}
		}
		value = v
		vi := px.registry.catalog.Vocabularies()
		if specs, ok := value.([]any); ok && vi != nil {
			for _, raw := range specs {
				spec, ok := raw.(string)
				if !ok {
					continue
				}
				if err := vi.ValidateTagspec(ctx, spec); err != nil {
					return &ConversionError{Field: f.qualName(), Direction: "validate", Err: err}
				}
			}
		}
	}
	return f.Property.Set(ctx, px, value)
}

// ConvertFromEntity accepts both plain tagspec strings and nested tag
// entities with a "name" wire field.
func (f *TagList) ConvertFromEntity(px *Proxy, entity Entity) error {
	wv, ok := entity[f.wireName]
	if !ok {
		if f.optional {
			px.attr[f.name] = Absent
			return nil
		}
		return &EntityError{Schema: px.Schema().Name(), WireField: f.wireName}
	}
	if wv == nil {
		px.attr[f.name] = nil
		return nil
	}
	items, ok := wv.([]any)
	if !ok {
		return &EntityError{Schema: px.Schema().Name(), WireField: f.wireName,
			Err: fmt.Errorf("expected a list, got %T", wv)}
	}
	specs := make([]any, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			specs = append(specs, v)
		case map[string]any:
			name, _ := v["name"].(string)
			if name == "" {
				return &EntityError{Schema: px.Schema().Name(), WireField: f.wireName,
					Err: fmt.Errorf("tag entity without a name")}
			}
			if vocab, ok := v["vocabulary"].(string); ok && vocab != "" {
				name = JoinTagspec(vocab, name)
			}
			specs = append(specs, name)
		default:
			return &EntityError{Schema: px.Schema().Name(), WireField: f.wireName,
				Err: fmt.Errorf("cannot decode %T as a tag", item)}
		}
	}
	px.attr[f.name] = specs
	return nil
}
