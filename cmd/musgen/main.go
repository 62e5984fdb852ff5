package main

import (
	"os"
	"reflect"
	"strings"

	musgen "github.com/mus-format/musgen-go/mus"
	genops "github.com/mus-format/musgen-go/options/generate"
	structops "github.com/mus-format/musgen-go/options/struct"
	typeops "github.com/mus-format/musgen-go/options/type"
	"github.com/poiesic/vecload/core"
)

func main() {
	cwd, err := os.Getwd()
	if err != nil {
		panic(err)
	}
	// go:generate runs from core; write relative to the module root
	if strings.HasSuffix(cwd, "core") {
		if err := os.Chdir(".."); err != nil {
			panic(err)
		}
	}
	g, err := musgen.NewCodeGenerator(
		genops.WithPkgPath("github.com/poiesic/vecload/core"),
	)
	if err != nil {
		panic(err)
	}

	g.AddDefinedType(reflect.TypeFor[core.JobID]())
	g.AddDefinedType(reflect.TypeFor[core.JobStatus]())
	g.AddDefinedType(reflect.TypeFor[core.Distance]())

	// Unix micro timestamps
	micro := typeops.WithTimeUnit(typeops.Micro)
	err = g.AddStruct(reflect.TypeFor[core.EmbeddingJob](),
		structops.WithField(), // Id
		structops.WithField(), // Status
		structops.WithField(), // Model
		structops.WithField(), // MetadataPath
		structops.WithField(), // TextColumns
		structops.WithField(), // Dimension
		structops.WithField(), // Rows
		structops.WithField(), // Error
		structops.WithField(micro),
		structops.WithField(micro))
	if err != nil {
		panic(err)
	}

	err = g.AddStruct(reflect.TypeFor[core.LoadCheckpoint](),
		structops.WithField(),
		structops.WithField(),
		structops.WithField(),
		structops.WithField(),
		structops.WithField(micro))
	if err != nil {
		panic(err)
	}

	for _, t := range []reflect.Type{
		reflect.TypeFor[core.QuantizationConfig](),
		reflect.TypeFor[core.IndexParams](),
		reflect.TypeFor[core.CollectionConfig](),
	} {
		if err := g.AddStruct(t); err != nil {
			panic(err)
		}
	}

	bs, err := g.Generate()
	if err != nil {
		panic(err)
	}

	err = os.WriteFile("./core/records_mus.gen.go", bs, 0644)
	if err != nil {
		panic(err)
	}
}
