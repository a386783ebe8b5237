package geostamp

import (
	"image"
	"math"
	"runtime"
	"sync"
)

// fitSize returns the largest size with the aspect of src that fits in
// maxW x maxH. It scales up as well as down.
func fitSize(src image.Point, maxW, maxH int) image.Point {
	if src.X <= 0 || src.Y <= 0 {
		return image.Point{}
	}
	ratio := math.Min(float64(maxW)/float64(src.X), float64(maxH)/float64(src.Y))
	return image.Pt(
		int(math.Max(1, math.Round(float64(src.X)*ratio))),
		int(math.Max(1, math.Round(float64(src.Y)*ratio))),
	)
}

// coverRect returns the centered sub-rectangle of a w x h source with the
// aspect ratio of dstW x dstH.
func coverRect(w, h, dstW, dstH int) image.Rectangle {
	if w*dstH > h*dstW {
		cw := int(math.Round(float64(h) * float64(dstW) / float64(dstH)))
		x0 := (w - cw) / 2
		return image.Rect(x0, 0, x0+cw, h)
	}
	ch := int(math.Round(float64(w) * float64(dstH) / float64(dstW)))
	y0 := (h - ch) / 2
	return image.Rect(0, y0, w, y0+ch)
}

// cropToFill center-crops src to the target aspect and resizes it to
// exactly w x h. It never letterboxes.
func cropToFill(b Backend, src *image.NRGBA, w, h int) *image.NRGBA {
	r := coverRect(src.Bounds().Dx(), src.Bounds().Dy(), w, h)
	return b.Resize(cropNRGBA(src, r), w, h)
}

// fitWithin resizes src to the largest size that fits in maxW x maxH.
func fitWithin(b Backend, src *image.NRGBA, maxW, maxH int) *image.NRGBA {
	sz := fitSize(src.Bounds().Size(), maxW, maxH)
	return b.Resize(src, sz.X, sz.Y)
}

// lanczosResize performs Lanczos-3 interpolation in two separable passes,
// horizontal then vertical, with alpha-weighted accumulation so transparent
// pixels do not bleed color into their neighbours.
func lanczosResize(img *image.NRGBA, dstW, dstH int) *image.NRGBA {
	srcW := img.Bounds().Dx()
	srcH := img.Bounds().Dy()

	if srcW <= 0 || srcH <= 0 || dstW <= 0 || dstH <= 0 {
		return image.NewNRGBA(image.Rect(0, 0, 0, 0))
	}
	if srcW == dstW && srcH == dstH {
		return toNRGBA(img)
	}

	tmp := resizeH(img, dstW, srcH)
	return resizeV(tmp, dstW, dstH)
}

const lanczosA = 3.0

func lanczosKernel(x float64) float64 {
	if x == 0 {
		return 1.0
	}
	if x < 0 {
		x = -x
	}
	if x >= lanczosA {
		return 0.0
	}
	xpi := x * math.Pi
	return (lanczosA * math.Sin(xpi) * math.Sin(xpi/lanczosA)) / (xpi * xpi)
}

type tap struct {
	index  int
	weight float64
}

// lanczosTaps precomputes the normalized filter taps for each of dstN
// output samples taken from srcN input samples.
func lanczosTaps(srcN, dstN int) [][]tap {
	ratio := float64(srcN) / float64(dstN)
	support := lanczosA
	if ratio > 1 {
		support = lanczosA * ratio
	}
	scale := math.Max(ratio, 1.0)

	taps := make([][]tap, dstN)
	for d := 0; d < dstN; d++ {
		center := (float64(d)+0.5)*ratio - 0.5
		lo := max(int(math.Ceil(center-support)), 0)
		hi := min(int(math.Floor(center+support)), srcN-1)

		var wsum float64
		row := make([]tap, 0, hi-lo+1)
		for s := lo; s <= hi; s++ {
			if w := lanczosKernel((float64(s) - center) / scale); w != 0 {
				wsum += w
				row = append(row, tap{s, w})
			}
		}
		if wsum != 0 {
			for i := range row {
				row[i].weight /= wsum
			}
		}
		taps[d] = row
	}
	return taps
}

// accumulate sums the taps for one output pixel. step is the byte distance
// between neighbouring source samples (4 for a row, stride for a column).
func accumulate(pix []uint8, base, step int, taps []tap, out []uint8) {
	var r, g, b, a float64
	for _, t := range taps {
		off := base + t.index*step
		aw := float64(pix[off+3]) * t.weight
		r += float64(pix[off]) * aw
		g += float64(pix[off+1]) * aw
		b += float64(pix[off+2]) * aw
		a += aw
	}
	if a != 0 {
		inv := 1.0 / a
		out[0] = clampF(r * inv)
		out[1] = clampF(g * inv)
		out[2] = clampF(b * inv)
		out[3] = clampF(a)
	}
}

func resizeH(src *image.NRGBA, dstW, dstH int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, dstW, dstH))
	taps := lanczosTaps(src.Bounds().Dx(), dstW)
	parallelDo(0, dstH, func(y int) {
		for dx := 0; dx < dstW; dx++ {
			o := y*dst.Stride + dx*4
			accumulate(src.Pix, y*src.Stride, 4, taps[dx], dst.Pix[o:o+4])
		}
	})
	return dst
}

func resizeV(src *image.NRGBA, dstW, dstH int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, dstW, dstH))
	taps := lanczosTaps(src.Bounds().Dy(), dstH)
	parallelDo(0, dstW, func(x int) {
		for dy := 0; dy < dstH; dy++ {
			o := dy*dst.Stride + x*4
			accumulate(src.Pix, x*4, src.Stride, taps[dy], dst.Pix[o:o+4])
		}
	})
	return dst
}

// overNRGBA blends src onto dst with its top-left corner at `at`, using
// straight (non-premultiplied) alpha. Pixels outside dst are clipped.
func overNRGBA(dst, src *image.NRGBA, at image.Point) {
	sb := src.Bounds()
	r := sb.Sub(sb.Min).Add(at).Intersect(dst.Bounds())
	if r.Empty() {
		return
	}
	dx := sb.Min.X - at.X
	dy := sb.Min.Y - at.Y
	parallelDo(r.Min.Y, r.Max.Y, func(y int) {
		for x := r.Min.X; x < r.Max.X; x++ {
			so := src.PixOffset(x+dx, y+dy)
			do := dst.PixOffset(x, y)
			sa := float64(src.Pix[so+3]) / 255
			if sa == 0 {
				continue
			}
			da := float64(dst.Pix[do+3]) / 255
			oa := sa + da*(1-sa)
			for c := 0; c < 3; c++ {
				v := (float64(src.Pix[so+c])*sa + float64(dst.Pix[do+c])*da*(1-sa)) / oa
				dst.Pix[do+c] = clampF(v)
			}
			dst.Pix[do+3] = clampF(oa * 255)
		}
	})
}

// parallelDo executes fn(i) for i in [start, stop) across multiple goroutines.
func parallelDo(start, stop int, fn func(i int)) {
	count := stop - start
	if count <= 0 {
		return
	}

	procs := runtime.GOMAXPROCS(0)
	if procs > count {
		procs = count
	}
	if procs <= 1 {
		for i := start; i < stop; i++ {
			fn(i)
		}
		return
	}

	var wg sync.WaitGroup
	batchSize := (count + procs - 1) / procs

	for p := 0; p < procs; p++ {
		batchStart := start + p*batchSize
		batchEnd := batchStart + batchSize
		if batchEnd > stop {
			batchEnd = stop
		}
		if batchStart >= batchEnd {
			continue
		}

		wg.Add(1)
		go func(from, to int) {
			defer wg.Done()
			for i := from; i < to; i++ {
				fn(i)
			}
		}(batchStart, batchEnd)
	}
	wg.Wait()
}
