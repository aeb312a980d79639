// This file contains code to help debugging, and is
// separated in from the rest in order not to litter
// the main code with debugging stuff

package main

import (
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/524D/mzfeat/internal/config"
	"github.com/524D/mzfeat/internal/signal"
)

// debugMatrices returns a finder debug hook that prints the signal matrix
// of every hypothesis with a mass in massRange (e.g. 1200:1210), with the
// intensity per charge at the apex scan of the charge
func debugMatrices(massRange string, w io.Writer) (func(*signal.Matrix), error) {
	debugMin, debugMax, err := config.ParseFloat64Range(massRange, 0, math.MaxFloat64)
	if err != nil {
		return nil, err
	}
	var mux sync.Mutex
	return func(m *signal.Matrix) {
		if m.Mass() < debugMin || m.Mass() > debugMax {
			return
		}
		mux.Lock()
		defer mux.Unlock()
		fmt.Fprint(w, m.String())
		for r := 0; r < m.Rows(); r++ {
			apexCol, apexVal := -1, 0.0
			for c := 0; c < m.Cols(); c++ {
				if m.Present(r, c) && m.Value(r, c) > apexVal {
					apexCol, apexVal = c, m.Value(r, c)
				}
			}
			if apexCol < 0 {
				continue
			}
			fmt.Fprintf(w, "charge:%d apex scan:%d rt:%f intens:%f matched:%d isotopes:%v\n",
				m.Charge(r), m.ScanNum(apexCol), m.ElutionTime(apexCol), apexVal,
				m.Matched(r, apexCol), m.IsotopeIntensities(r, apexCol))
		}
	}, nil
}
