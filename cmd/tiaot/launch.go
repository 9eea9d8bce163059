package main

import (
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/gogpu/taichi"
	"github.com/gogpu/taichi/capi"
	"github.com/gogpu/taichi/internal/manifest"
)

type launchOptions struct {
	arch    string
	device  uint32
	graph   string
	kernel  string
	args    string
	dump    bool
	png     string
	pngArg  string
	pngZoom int
}

func newLaunchCmd() *cobra.Command {
	var o launchOptions
	cmd := &cobra.Command{
		Use:   "launch MODULE",
		Short: "Launch a compute graph or kernel and print its ND-array arguments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return launchHandler(cmd, args[0], o)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.arch, "arch", capi.ArchX64.String(), "Backend architecture")
	f.Uint32Var(&o.device, "device", 0, "Device index")
	f.StringVarP(&o.graph, "graph", "g", "", "Compute graph to launch")
	f.StringVarP(&o.kernel, "kernel", "k", "", "Kernel to launch")
	f.StringVarP(&o.args, "args", "a", "", "YAML file describing the arguments")
	f.BoolVar(&o.dump, "dump", false, "Print every element of the ND-arrays")
	f.StringVar(&o.png, "png", "", "Write a 2D ND-array as a grayscale PNG")
	f.StringVar(&o.pngArg, "png-arg", "", "ND-array written by --png (default: the first 2D one)")
	f.IntVar(&o.pngZoom, "png-zoom", 16, "Pixels per element in the PNG")
	cmd.MarkFlagsMutuallyExclusive("graph", "kernel")
	return cmd
}

func launchHandler(cmd *cobra.Command, path string, o launchOptions) error {
	if o.graph == "" && o.kernel == "" {
		return errors.New("one of --graph or --kernel is required")
	}
	arch, ok := capi.ParseArch(o.arch)
	if !ok {
		return fmt.Errorf("unknown arch %q", o.arch)
	}
	specs := map[string]argSpec{}
	if o.args != "" {
		var err error
		if specs, err = loadArgs(o.args); err != nil {
			return err
		}
	}
	b, err := manifest.Open(path)
	if err != nil {
		return err
	}

	rt, err := taichi.NewRuntime(arch, taichi.WithDeviceIndex(o.device))
	if err != nil {
		return err
	}
	defer rt.Close()
	mod, err := rt.LoadModule(path)
	if err != nil {
		return err
	}
	defer mod.Close()

	arrays := make(map[string]array)
	defer func() {
		for _, a := range arrays {
			a.Close()
		}
	}()
	values := make(map[string]taichi.Argument)
	for _, name := range sortedNames(specs) {
		s := specs[name]
		if s.Kind == "ndarray" {
			a, err := newArray(rt, s)
			if err != nil {
				return fmt.Errorf("arg %q: %w", name, err)
			}
			arrays[name] = a
			values[name] = taichi.NdArrayArgument(a)
			continue
		}
		v, err := scalarArg(s)
		if err != nil {
			return fmt.Errorf("arg %q: %w", name, err)
		}
		values[name] = v
	}

	if o.graph != "" {
		err = launchGraph(mod, o.graph, values)
	} else {
		err = launchKernel(mod, b, o.kernel, values)
	}
	if err != nil {
		return err
	}
	if err := rt.Wait(); err != nil {
		return err
	}

	if err := printArrays(cmd, arrays, o.dump); err != nil {
		return err
	}
	if o.png != "" {
		return writePreview(cmd, arrays, o)
	}
	return nil
}

func launchGraph(mod *taichi.Module, name string, values map[string]taichi.Argument) error {
	g, err := mod.ComputeGraph(name)
	if err != nil {
		return err
	}
	defer g.Close()
	for argName, v := range values {
		if err := g.SetArg(argName, v); err != nil {
			return err
		}
	}
	return g.Launch()
}

// launchKernel binds arguments by the parameter names the manifest gives the
// kernel.
func launchKernel(mod *taichi.Module, b *manifest.Bundle, name string, values map[string]taichi.Argument) error {
	spec, ok := b.Kernel(name)
	if !ok {
		return fmt.Errorf("kernel %q not in manifest", name)
	}
	k, err := mod.Kernel(name)
	if err != nil {
		return err
	}
	defer k.Close()
	for i, p := range spec.Args {
		v, ok := values[p.Name]
		if !ok {
			return fmt.Errorf("kernel %q: argument %q not given", name, p.Name)
		}
		if err := k.SetArg(i, v); err != nil {
			return err
		}
	}
	return k.Launch()
}

func printArrays(cmd *cobra.Command, arrays map[string]array, dump bool) error {
	names := make([]string, 0, len(arrays))
	for name := range arrays {
		names = append(names, name)
	}
	slices.Sort(names)

	var data [][]string
	dumps := make(map[string][]float64)
	for _, name := range names {
		a := arrays[name]
		vals, err := a.floats()
		if err != nil {
			return fmt.Errorf("read %q: %w", name, err)
		}
		lo, hi, sum := summarize(vals)
		data = append(data, []string{
			name, a.ElemType().String(), fmt.Sprint(a.Shape()),
			fmt.Sprint(lo), fmt.Sprint(hi), fmt.Sprint(sum),
		})
		dumps[name] = vals
	}
	table := newTable(cmd, []string{"ARG", "DTYPE", "SHAPE", "MIN", "MAX", "SUM"})
	table.AppendBulk(data)
	table.Render()

	if !dump {
		return nil
	}
	out := cmd.OutOrStdout()
	for _, name := range names {
		fmt.Fprintf(out, "\n%s:\n", name)
		shape := arrays[name].Shape()
		vals := dumps[name]
		row := len(vals)
		if len(shape) > 1 {
			row = len(vals) / int(shape[0])
		}
		for start := 0; start < len(vals); start += row {
			fmt.Fprintln(out, vals[start:min(start+row, len(vals))])
		}
	}
	return nil
}

func summarize(vals []float64) (lo, hi, sum float64) {
	if len(vals) == 0 {
		return 0, 0, 0
	}
	lo, hi = vals[0], vals[0]
	for _, v := range vals {
		lo = min(lo, v)
		hi = max(hi, v)
		sum += v
	}
	return lo, hi, sum
}
