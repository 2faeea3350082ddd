// Package exrdeep reads and writes OpenEXR 2.0 deep scanline files as deep
// pixels.
//
// Every file carries a "Z" channel holding the sample depths; it becomes the
// depth of each deep.Pixel sample and every other channel becomes a pixel
// channel. FLOAT and HALF channels are supported, with NONE, RLE, ZIPS and
// ZIP compression for reading and NONE, RLE and ZIPS for writing. Tiled and
// multi-part files are not.
//
// Reading one pixel at a time goes through a cache of decoded scanlines:
//
//	r, err := exrdeep.Open("beauty.dexr")
//	if err != nil {
//		return err
//	}
//	defer r.Close()
//	p, err := r.ReadPixel(10, 20)
//
// Writing is sequential by scanline:
//
//	w, err := exrdeep.Create("out.dexr", exrdeep.DefaultWriterOptions(640, 480))
//	if err != nil {
//		return err
//	}
//	for y := 0; y < 480; y++ {
//		for x := 0; x < 640; x++ {
//			if err := w.WritePixel(x, y, pixelAt(x, y)); err != nil {
//				return err
//			}
//		}
//	}
//	return w.Close()
package exrdeep
