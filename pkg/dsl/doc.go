/*
Package dsl provides a fluent Go builder for cvflow pipeline documents.

It is an alternative to YAML, JSON or HCL files for pipelines defined in code,
in tests, or generated dynamically.

Example usage:

	b := dsl.New("edges")

	b.Add("kernel").Type("Kernel").Set("kernel", [][]float64{{0, 1}, {1, 0}})
	b.Add("blur").Type("GausKernel").Set("sigma", 1.5)
	b.Add("sum").Type("Sum").From("kernel").From("blur")

	doc, err := b.Build()
	if err != nil {
		return err
	}
	return engine.Import(doc)
*/
package dsl
