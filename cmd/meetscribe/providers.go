package main

import (
	"errors"
	"fmt"
	"log/slog"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/meetscribe/internal/app"
	"github.com/MrWong99/meetscribe/internal/config"
	"github.com/MrWong99/meetscribe/pkg/provider/embeddings"
	embedopenai "github.com/MrWong99/meetscribe/pkg/provider/embeddings/openai"
	"github.com/MrWong99/meetscribe/pkg/provider/llm"
	"github.com/MrWong99/meetscribe/pkg/provider/llm/anyllm"
	"github.com/MrWong99/meetscribe/pkg/provider/llm/openai"
	"github.com/MrWong99/meetscribe/pkg/provider/stt"
	"github.com/MrWong99/meetscribe/pkg/provider/stt/deepgram"
	"github.com/MrWong99/meetscribe/pkg/provider/stt/whisper"
)

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the provider
// from the real implementation package.
func registerBuiltinProviders(reg *config.Registry, sampleRate int) {
	// ── LLM ───────────────────────────────────────────────────────────────────

	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if org := entry.OptString("organization"); org != "" {
			opts = append(opts, openai.WithOrganization(org))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})

	// The remaining hosted backends share the same shape: optional APIKey and
	// optional BaseURL.
	for _, providerName := range []string{
		"anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		opts := []deepgram.Option{deepgram.WithSampleRate(sampleRate)}
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithBaseURL(entry.BaseURL))
		}
		if lang := entry.OptString("language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		if on, ok := entry.Options["diarize"].(bool); ok {
			opts = append(opts, deepgram.WithDiarize(on))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		opts := []whisper.Option{whisper.WithSampleRate(sampleRate)}
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := entry.OptString("language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = entry.OptString("model_path")
		}
		opts := []whisper.NativeOption{whisper.WithNativeSampleRate(sampleRate)}
		if lang := entry.OptString("language"); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		return whisper.NewNative(modelPath, opts...)
	})

	// ── Embeddings ────────────────────────────────────────────────────────────

	reg.RegisterEmbeddings("openai", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		return newEmbedder(entry, entry.BaseURL)
	})

	// ollama serves the OpenAI embeddings API under /v1 and needs no key.
	reg.RegisterEmbeddings("ollama", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		base := entry.BaseURL
		if base == "" {
			base = defaultOllamaEmbeddingsURL
		}
		return newEmbedder(entry, base)
	})

	for _, kind := range []string{"stt", "llm", "embeddings"} {
		slog.Debug("registered providers", "kind", kind, "names", reg.Names(kind))
	}
}

const defaultOllamaEmbeddingsURL = "http://localhost:11434/v1"

func newEmbedder(entry config.ProviderEntry, baseURL string) (embeddings.Provider, error) {
	var opts []embedopenai.Option
	if baseURL != "" {
		opts = append(opts, embedopenai.WithBaseURL(baseURL))
	}
	if org := entry.OptString("organization"); org != "" {
		opts = append(opts, embedopenai.WithOrganization(org))
	}
	if n, ok := entry.Options["dimensions"].(int); ok {
		opts = append(opts, embedopenai.WithDimensions(n))
	}
	return embedopenai.New(entry.APIKey, entry.Model, opts...)
}

// buildProviders instantiates the providers named in cfg. The audio backend
// is left to the commands that capture.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	if entry := cfg.Providers.STT; entry.Name != "" {
		p, err := createSTT(reg, entry)
		if err != nil {
			return nil, err
		}
		ps.STT = app.NamedSTT{Name: entry.Name, Provider: p}
	}
	for _, entry := range cfg.Providers.STTFallbacks {
		p, err := createSTT(reg, entry)
		if err != nil {
			return nil, err
		}
		if p != nil {
			ps.STTFallbacks = append(ps.STTFallbacks, app.NamedSTT{Name: entry.Name, Provider: p})
		}
	}

	if entry := cfg.Providers.LLM; entry.Name != "" {
		p, err := reg.CreateLLM(entry)
		switch {
		case errors.Is(err, config.ErrProviderNotRegistered):
			slog.Warn("provider not available, skipping", "kind", "llm", "name", entry.Name)
		case err != nil:
			return nil, fmt.Errorf("create llm provider %q: %w", entry.Name, err)
		default:
			ps.LLM, ps.LLMName = p, entry.Name
			slog.Info("provider created", "kind", "llm", "name", entry.Name, "model", entry.Model)
		}
	}

	if entry := cfg.Providers.Embeddings; entry.Name != "" {
		p, err := reg.CreateEmbeddings(entry)
		switch {
		case errors.Is(err, config.ErrProviderNotRegistered):
			slog.Warn("provider not available, skipping", "kind", "embeddings", "name", entry.Name)
		case err != nil:
			return nil, fmt.Errorf("create embeddings provider %q: %w", entry.Name, err)
		default:
			ps.Embeddings = p
			slog.Info("provider created", "kind", "embeddings", "name", entry.Name, "model", p.ModelID())
		}
	}
	return ps, nil
}

// createSTT returns nil without error for names nobody registered.
func createSTT(reg *config.Registry, entry config.ProviderEntry) (stt.Provider, error) {
	p, err := reg.CreateSTT(entry)
	switch {
	case errors.Is(err, config.ErrProviderNotRegistered):
		slog.Warn("provider not available, skipping", "kind", "stt", "name", entry.Name)
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("create stt provider %q: %w", entry.Name, err)
	}
	slog.Info("provider created", "kind", "stt", "name", entry.Name, "model", entry.Model)
	return p, nil
}

// providers builds every configured provider for c.cfg.
func (c *cli) providers() (*app.Providers, error) {
	reg := config.NewRegistry()
	registerBuiltinProviders(reg, c.cfg.Audio.SampleRate)
	return buildProviders(c.cfg, reg)
}
