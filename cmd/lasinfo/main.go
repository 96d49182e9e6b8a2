// Command lasinfo is a thin smoke front-end for the lidario package: it
// opens a LAS or LAZ file, prints the header and VLR summary, and
// optionally verifies every point decodes without error.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/jblindsay/lasz"
)

func main() {
	verify := flag.Bool("verify", false, "read every point and report decode errors")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: lasinfo [-verify] file.las|file.laz\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(flag.Arg(0), *verify); err != nil {
		fmt.Fprintln(os.Stderr, "lasinfo:", err)
		os.Exit(1)
	}
}

func run(fileName string, verify bool) error {
	f, err := lidario.NewLidarFile(fileName)
	if err != nil {
		return err
	}
	defer f.Close()

	h := f.GetHeader()
	kind := "LAS"
	if f.IsCompressed() {
		kind = "LAZ"
	}

	fmt.Printf("file:              %s (%s)\n", fileName, kind)
	fmt.Printf("version:           %d.%d\n", h.VersionMajor, h.VersionMinor)
	fmt.Printf("system identifier: %s\n", h.SystemIDString())
	fmt.Printf("generating sw:     %s\n", h.GeneratingSoftwareString())
	fmt.Printf("point format:      %d\n", h.PointDataFormatID)
	fmt.Printf("point count:       %d\n", f.GetPointCount())
	fmt.Printf("scale:             %g, %g, %g\n", h.XScaleFactor, h.YScaleFactor, h.ZScaleFactor)
	fmt.Printf("offset:            %g, %g, %g\n", h.XOffset, h.YOffset, h.ZOffset)
	fmt.Printf("bounds x:          [%g, %g]\n", h.MinX, h.MaxX)
	fmt.Printf("bounds y:          [%g, %g]\n", h.MinY, h.MaxY)
	fmt.Printf("bounds z:          [%g, %g]\n", h.MinZ, h.MaxZ)

	for i, n := range h.NumberOfPointsByReturn {
		if n == 0 {
			continue
		}
		fmt.Printf("return %d count:    %d\n", i+1, n)
	}

	if !verify {
		return nil
	}

	count := int(f.GetPointCount())
	for i := 0; i < count; i++ {
		if _, err := f.LasPoint(i); err != nil {
			return fmt.Errorf("point %d: %w", i, err)
		}
	}
	fmt.Printf("verified:          %d points decoded cleanly\n", count)
	return nil
}
