package transforms

import (
	"context"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math/rand"
	"strings"
	"unicode"

	"github.com/rubriq/appraise/internal/domain"
	"github.com/rubriq/appraise/internal/ports"
)

// Perturbation type identifiers accepted by NewPerturbation.
const (
	// PerturbationButterFinger introduces keyboard-neighbor typos.
	PerturbationButterFinger = "butter_finger"

	// PerturbationRandomUppercase uppercases a random fraction of characters.
	PerturbationRandomUppercase = "random_uppercase"

	// PerturbationAddRemoveWhitespace randomly adds and removes whitespace.
	PerturbationAddRemoveWhitespace = "add_remove_whitespace"
)

// PerturbationTypes lists the accepted perturbation type identifiers in the
// order they are reported to users.
var PerturbationTypes = []string{
	PerturbationButterFinger,
	PerturbationRandomUppercase,
	PerturbationAddRemoveWhitespace,
}

// PerturbationParams carries every perturbation knob so algorithm
// configurations can forward user settings without knowing which
// perturbation type was selected.
type PerturbationParams struct {
	// ButterFingerProb is the per-character typo probability.
	ButterFingerProb float64 `yaml:"butter_finger_perturbation_prob" json:"butter_finger_perturbation_prob" validate:"gte=0,lte=1"`

	// UppercaseCorruptProportion is the fraction of characters to uppercase.
	UppercaseCorruptProportion float64 `yaml:"random_uppercase_corrupt_proportion" json:"random_uppercase_corrupt_proportion" validate:"gte=0,lte=1"`

	// WhitespaceRemoveProb is the probability of dropping each whitespace
	// character.
	WhitespaceRemoveProb float64 `yaml:"whitespace_remove_prob" json:"whitespace_remove_prob" validate:"gte=0,lte=1"`

	// WhitespaceAddProb is the probability of inserting a space before each
	// non-whitespace character.
	WhitespaceAddProb float64 `yaml:"whitespace_add_prob" json:"whitespace_add_prob" validate:"gte=0,lte=1"`

	// Seed feeds the deterministic per-record random source.
	Seed int64 `yaml:"seed" json:"seed"`
}

// DefaultPerturbationParams returns the perturbation knobs used when a
// configuration leaves them unset.
func DefaultPerturbationParams() PerturbationParams {
	return PerturbationParams{
		ButterFingerProb:           0.1,
		UppercaseCorruptProportion: 0.1,
		WhitespaceRemoveProb:       0.1,
		WhitespaceAddProb:          0.05,
		Seed:                       5,
	}
}

// NewPerturbation constructs the perturbation transform registered under
// perturbationType, reading one input key and writing one perturbed variant
// per output key. Unknown types are a configuration error since the type
// string is user-supplied.
func NewPerturbation(perturbationType, inputKey string, outputKeys []string, params PerturbationParams) (ports.Transform, error) {
	switch perturbationType {
	case PerturbationButterFinger:
		return NewButterFinger(inputKey, outputKeys, ButterFingerConfig{
			PerturbationProb: params.ButterFingerProb,
			Seed:             params.Seed,
		})
	case PerturbationRandomUppercase:
		return NewRandomUppercase(inputKey, outputKeys, RandomUppercaseConfig{
			CorruptProportion: params.UppercaseCorruptProportion,
			Seed:              params.Seed,
		})
	case PerturbationAddRemoveWhitespace:
		return NewAddRemoveWhitespace(inputKey, outputKeys, AddRemoveWhitespaceConfig{
			RemoveProb: params.WhitespaceRemoveProb,
			AddProb:    params.WhitespaceAddProb,
			Seed:       params.Seed,
		})
	default:
		return nil, domain.NewConfigError(
			"invalid perturbation type %q requested, please choose from acceptable values: %v",
			perturbationType, PerturbationTypes)
	}
}

// perturber holds the key wiring shared by all perturbation transforms.
// Each transform derives a fresh random source per (input text, variant)
// pair, so concurrent row application is race-free and reruns over the same
// input reproduce the same variants.
type perturber struct {
	name       string
	inputKey   string
	outputKeys []string
	seed       int64
}

func newPerturber(name, inputKey string, outputKeys []string, seed int64) (perturber, error) {
	if err := validateInputKeys("input_keys", []string{inputKey}, false); err != nil {
		return perturber{}, err
	}
	if err := validateOutputKeys("output_keys", outputKeys); err != nil {
		return perturber{}, err
	}
	return perturber{name: name, inputKey: inputKey, outputKeys: outputKeys, seed: seed}, nil
}

// Name returns the transform identifier used in error messages and traces.
func (p perturber) Name() string { return p.name }

// InputKeys returns the single key holding the text to perturb.
func (p perturber) InputKeys() []string { return []string{p.inputKey} }

// OutputKeys returns the keys the perturbed variants are written to.
// The returned slice should not be modified by callers.
func (p perturber) OutputKeys() []string { return p.outputKeys }

// apply runs perturb once per output key with a variant-specific source.
func (p perturber) apply(record domain.Record, perturb func(string, *rand.Rand) string) (domain.Record, error) {
	if err := requireInputs(p.name, p.InputKeys(), record); err != nil {
		return domain.Record{}, err
	}

	text, err := stringValue(p.name, p.inputKey, record)
	if err != nil {
		return domain.Record{}, err
	}

	result := record
	for i, key := range p.outputKeys {
		result = result.With(key, perturb(text, p.variantSource(text, i)))
	}
	return result, nil
}

// variantSource derives a deterministic random source for one
// (input text, variant index) pair.
func (p perturber) variantSource(text string, variant int) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(text))
	var idx [8]byte
	binary.LittleEndian.PutUint64(idx[:], uint64(variant))
	h.Write(idx[:])
	return rand.New(rand.NewSource(p.seed ^ int64(h.Sum64())))
}

// qwertyNeighbors maps each lowercase letter to the keys adjacent to it on a
// QWERTY layout, used to pick plausible typo substitutions.
var qwertyNeighbors = map[rune]string{
	'q': "wa", 'w': "qesa", 'e': "wrsd", 'r': "etdf", 't': "ryfg",
	'y': "tugh", 'u': "yihj", 'i': "uojk", 'o': "ipkl", 'p': "ol",
	'a': "qwsz", 's': "awedxz", 'd': "serfcx", 'f': "drtgvc", 'g': "ftyhbv",
	'h': "gyujnb", 'j': "huikmn", 'k': "jiolm", 'l': "kop",
	'z': "asx", 'x': "zsdc", 'c': "xdfv", 'v': "cfgb", 'b': "vghn",
	'n': "bhjm", 'm': "njk",
}

var _ ports.Transform = (*ButterFinger)(nil)

// ButterFinger perturbs text by replacing characters with QWERTY-adjacent
// ones, simulating typos a fast typist would make. Characters without a
// keyboard neighbor (digits, punctuation, whitespace) are never altered.
type ButterFinger struct {
	perturber
	config ButterFingerConfig
}

// ButterFingerConfig controls typo injection.
type ButterFingerConfig struct {
	// PerturbationProb is the probability of replacing each character.
	PerturbationProb float64 `yaml:"perturbation_prob" json:"perturbation_prob" validate:"gte=0,lte=1"`

	// Seed feeds the deterministic per-record random source.
	Seed int64 `yaml:"seed" json:"seed"`
}

// DefaultButterFingerConfig returns the typo knobs used when unset.
func DefaultButterFingerConfig() ButterFingerConfig {
	return ButterFingerConfig{PerturbationProb: 0.1, Seed: 5}
}

// NewButterFinger creates a ButterFinger writing one perturbed variant of
// inputKey per output key.
func NewButterFinger(inputKey string, outputKeys []string, config ButterFingerConfig) (*ButterFinger, error) {
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	p, err := newPerturber(PerturbationButterFinger, inputKey, outputKeys, config.Seed)
	if err != nil {
		return nil, err
	}
	return &ButterFinger{perturber: p, config: config}, nil
}

// Apply writes the perturbed variants under the output keys.
func (bf *ButterFinger) Apply(ctx context.Context, record domain.Record) (domain.Record, error) {
	return bf.apply(record, bf.perturb)
}

func (bf *ButterFinger) perturb(text string, rng *rand.Rand) string {
	runes := []rune(text)
	for i, r := range runes {
		if rng.Float64() >= bf.config.PerturbationProb {
			continue
		}
		neighbors, ok := qwertyNeighbors[unicode.ToLower(r)]
		if !ok {
			continue
		}
		candidates := []rune(neighbors)
		runes[i] = candidates[rng.Intn(len(candidates))]
	}
	return string(runes)
}

var _ ports.Transform = (*RandomUppercase)(nil)

// RandomUppercase perturbs text by uppercasing a random sample of character
// positions. Positions holding non-letter characters stay unchanged, so the
// effective change rate can fall below the configured proportion.
type RandomUppercase struct {
	perturber
	config RandomUppercaseConfig
}

// RandomUppercaseConfig controls case corruption.
type RandomUppercaseConfig struct {
	// CorruptProportion is the fraction of character positions to sample.
	CorruptProportion float64 `yaml:"corrupt_proportion" json:"corrupt_proportion" validate:"gte=0,lte=1"`

	// Seed feeds the deterministic per-record random source.
	Seed int64 `yaml:"seed" json:"seed"`
}

// DefaultRandomUppercaseConfig returns the case knobs used when unset.
func DefaultRandomUppercaseConfig() RandomUppercaseConfig {
	return RandomUppercaseConfig{CorruptProportion: 0.1, Seed: 5}
}

// NewRandomUppercase creates a RandomUppercase writing one perturbed variant
// of inputKey per output key.
func NewRandomUppercase(inputKey string, outputKeys []string, config RandomUppercaseConfig) (*RandomUppercase, error) {
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	p, err := newPerturber(PerturbationRandomUppercase, inputKey, outputKeys, config.Seed)
	if err != nil {
		return nil, err
	}
	return &RandomUppercase{perturber: p, config: config}, nil
}

// Apply writes the perturbed variants under the output keys.
func (ru *RandomUppercase) Apply(ctx context.Context, record domain.Record) (domain.Record, error) {
	return ru.apply(record, ru.perturb)
}

func (ru *RandomUppercase) perturb(text string, rng *rand.Rand) string {
	runes := []rune(text)
	count := int(ru.config.CorruptProportion * float64(len(runes)))
	for _, pos := range rng.Perm(len(runes))[:count] {
		runes[pos] = unicode.ToUpper(runes[pos])
	}
	return string(runes)
}

var _ ports.Transform = (*AddRemoveWhitespace)(nil)

// AddRemoveWhitespace perturbs text by dropping existing whitespace
// characters and inserting spaces before non-whitespace characters, each
// with its own probability.
type AddRemoveWhitespace struct {
	perturber
	config AddRemoveWhitespaceConfig
}

// AddRemoveWhitespaceConfig controls whitespace corruption.
type AddRemoveWhitespaceConfig struct {
	// RemoveProb is the probability of dropping each whitespace character.
	RemoveProb float64 `yaml:"remove_prob" json:"remove_prob" validate:"gte=0,lte=1"`

	// AddProb is the probability of inserting a space before each
	// non-whitespace character.
	AddProb float64 `yaml:"add_prob" json:"add_prob" validate:"gte=0,lte=1"`

	// Seed feeds the deterministic per-record random source.
	Seed int64 `yaml:"seed" json:"seed"`
}

// DefaultAddRemoveWhitespaceConfig returns the whitespace knobs used when
// unset.
func DefaultAddRemoveWhitespaceConfig() AddRemoveWhitespaceConfig {
	return AddRemoveWhitespaceConfig{RemoveProb: 0.1, AddProb: 0.05, Seed: 5}
}

// NewAddRemoveWhitespace creates an AddRemoveWhitespace writing one
// perturbed variant of inputKey per output key.
func NewAddRemoveWhitespace(inputKey string, outputKeys []string, config AddRemoveWhitespaceConfig) (*AddRemoveWhitespace, error) {
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	p, err := newPerturber(PerturbationAddRemoveWhitespace, inputKey, outputKeys, config.Seed)
	if err != nil {
		return nil, err
	}
	return &AddRemoveWhitespace{perturber: p, config: config}, nil
}

// Apply writes the perturbed variants under the output keys.
func (arw *AddRemoveWhitespace) Apply(ctx context.Context, record domain.Record) (domain.Record, error) {
	return arw.apply(record, arw.perturb)
}

func (arw *AddRemoveWhitespace) perturb(text string, rng *rand.Rand) string {
	var sb strings.Builder
	sb.Grow(len(text))
	for _, r := range text {
		if unicode.IsSpace(r) {
			if rng.Float64() >= arw.config.RemoveProb {
				sb.WriteRune(r)
			}
			continue
		}
		if rng.Float64() < arw.config.AddProb {
			sb.WriteByte(' ')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
