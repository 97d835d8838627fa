package utils

import (
	"testing"

	"go.viam.com/test"
	"go.viam.com/utils"
)

type floatArgs struct {
	Scale Float64Flag `flag:"sf,usage=scale factor"`
	Name  string      `flag:"name"`
}

func TestFloat64Flag(t *testing.T) {
	var args floatArgs
	test.That(t, utils.ParseFlags([]string{"main", "--sf=2.5", "--name=x"}, &args), test.ShouldBeNil)
	test.That(t, args.Scale.IsSet(), test.ShouldBeTrue)
	test.That(t, args.Scale.Float64(), test.ShouldEqual, 2.5)
	test.That(t, args.Name, test.ShouldEqual, "x")
	test.That(t, args.Scale.String(), test.ShouldEqual, "2.5")
	test.That(t, args.Scale.Get(), test.ShouldEqual, 2.5)

	var unset floatArgs
	test.That(t, utils.ParseFlags([]string{"main"}, &unset), test.ShouldBeNil)
	test.That(t, unset.Scale.IsSet(), test.ShouldBeFalse)
	test.That(t, unset.Scale.Float64(), test.ShouldEqual, 0.0)
	test.That(t, unset.Scale.String(), test.ShouldEqual, "")

	err := utils.ParseFlags([]string{"main", "--sf=abc"}, &unset)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "invalid float")
}

func TestFloat64FlagExplicitZero(t *testing.T) {
	var args floatArgs
	test.That(t, utils.ParseFlags([]string{"main", "--sf", "0"}, &args), test.ShouldBeNil)
	test.That(t, args.Scale.IsSet(), test.ShouldBeTrue)
	test.That(t, args.Scale.Float64(), test.ShouldEqual, 0.0)
	test.That(t, args.Scale.String(), test.ShouldEqual, "0")

	given := NewFloat64Flag(-1.5)
	test.That(t, given.IsSet(), test.ShouldBeTrue)
	test.That(t, given.Float64(), test.ShouldEqual, -1.5)
}
