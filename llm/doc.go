// Package llm is the provider-neutral core of promptctl: it decides which
// provider/model pairs to try, in what order, with what retry budget, and
// shapes heterogeneous provider responses into uniform text, streams, and
// usage records.
//
// # Core concepts
//
//  1. Catalog: a static table of the three supported providers (Google,
//     OpenAI, Anthropic), their models, pricing, and capabilities.
//
//  2. Plan: BuildPlan turns a primary ProviderModel plus configured
//     overrides into an ordered list of steps, each with an attempt budget
//     and inter-attempt delay. The primary step comes first; fallback pairs
//     follow, never on the primary's provider.
//
//  3. Client interface: the single transport capability. Provider bindings
//     live in the llm/google, llm/openai, and llm/anthropic subpackages;
//     nothing above the interface references a concrete SDK type.
//
//  4. Runner: drives a plan sequentially, classifying each failure and
//     deciding retry-vs-advance, in buffered, streaming, or structured mode.
//
//  5. Normalizer: ExtractText and ExtractUsage read the loosely-typed
//     payloads providers return (parts[0].text vs. a top-level text field,
//     promptTokens vs. inputTokens) into uniform values; NewUsageRecord
//     prices them from the catalog.
//
//  6. Errors: Classify derives a rate_limited / quota_exceeded /
//     invalid_input / unavailable variant from an opaque backend failure,
//     structured signals first, free-text scan second.
//
// # Adding a provider
//
// Implement the Client interface in a subpackage, translate the provider's
// wire format into Response.Raw/Meta, and convert its errors into *llm.Error
// values so classification sees structured signals instead of strings.
package llm
