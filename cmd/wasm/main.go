//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"sort"
	"syscall/js"

	"doclink/config"
	"doclink/internal/adapter/memstore"
	"doclink/internal/domain"
	"doclink/internal/usecase"
)

var (
	store   *memstore.MemoryStore
	builder *usecase.Builder
	sources map[string]string
)

func init() {
	store = memstore.NewMemoryStore()
	sources = make(map[string]string)

	var err error
	builder, err = usecase.NewBuilder(config.DefaultConfig(), store, nil)
	if err != nil {
		panic(err)
	}
}

func main() {
	c := make(chan struct{})

	js.Global().Set("doclinkAdd", js.FuncOf(addSource))
	js.Global().Set("doclinkBuild", js.FuncOf(build))
	js.Global().Set("doclinkClear", js.FuncOf(clearSources))
	js.Global().Set("doclinkStats", js.FuncOf(getStats))

	<-c
}

func addSource(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return makeError("usage: doclinkAdd(filename, content)")
	}
	sources[args[0].String()] = args[1].String()
	return makeResult(map[string]interface{}{
		"success":  true,
		"filename": args[0].String(),
	})
}

func build(this js.Value, args []js.Value) interface{} {
	paths := make([]string, 0, len(sources))
	for p := range sources {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	units := make([]domain.SourceUnit, 0, len(paths))
	for _, p := range paths {
		units = append(units, domain.SourceUnit{Path: p, Text: sources[p]})
	}

	res, err := builder.Build(context.Background(), units, nil)
	if err != nil {
		return makeError("build failed: " + err.Error())
	}

	diags := make([]string, 0, len(res.Report.Diagnostics))
	for _, d := range res.Report.Diagnostics {
		diags = append(diags, d.String())
	}

	return makeResult(map[string]interface{}{
		"html":        res.HTML,
		"diagnostics": diags,
		"symbols":     res.Table.Symbols(),
		"stats":       res.Stats,
	})
}

func clearSources(this js.Value, args []js.Value) interface{} {
	sources = make(map[string]string)
	store.Prune(nil)
	return makeResult(map[string]interface{}{
		"success": true,
	})
}

func getStats(this js.Value, args []js.Value) interface{} {
	stats, _ := store.GetStats()

	filenames := make([]string, 0, len(sources))
	for p := range sources {
		filenames = append(filenames, p)
	}
	sort.Strings(filenames)

	return makeResult(map[string]interface{}{
		"units":    stats.Units,
		"elements": stats.Elements,
		"resolved": stats.Resolved,
		"files":    filenames,
	})
}

func makeError(msg string) interface{} {
	result, _ := json.Marshal(map[string]interface{}{
		"error": msg,
	})
	return string(result)
}

func makeResult(data map[string]interface{}) interface{} {
	result, _ := json.Marshal(data)
	return string(result)
}
