package responsive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bp(v int) *int { return &v }

// Listed smallest first on purpose; Sorted must not depend on input order.
var testDevices = Devices{
	{ID: "b1", W: 100, Breakpoint: bp(150)},
	{ID: "b2", W: 200, Breakpoint: bp(250)},
	{ID: "b3", W: 300, Breakpoint: bp(350)},
	{ID: "b4", W: 400, Breakpoint: bp(450)},
	{ID: "b5", W: 500, Breakpoint: nil},
}

var threeDevices = Devices{
	{ID: "b1", Breakpoint: bp(150)},
	{ID: "b2", Breakpoint: bp(250)},
	{ID: "b3", Breakpoint: nil},
}

func TestDevices_Sorted(t *testing.T) {
	assert.Equal(t, []string{"b5", "b4", "b3", "b2", "b1"}, testDevices.Sorted().IDs())

	reversed := Devices{testDevices[4], testDevices[2], testDevices[0], testDevices[3], testDevices[1]}
	assert.Equal(t, testDevices.Sorted().IDs(), reversed.Sorted().IDs())
}

func TestDevices_Main(t *testing.T) {
	assert.Equal(t, "b5", testDevices.Main().ID)

	withMain := append(Devices{}, testDevices...)
	withMain[1].IsMain = true
	assert.Equal(t, "b2", withMain.Main().ID)
}

func TestDevices_Validate(t *testing.T) {
	require.NoError(t, testDevices.Validate())
	assert.Error(t, Devices{}.Validate())
	assert.Error(t, Devices{{ID: "a"}, {ID: "a", Breakpoint: bp(1)}}.Validate())
	assert.Error(t, Devices{{ID: "a", Breakpoint: bp(1)}}.Validate())
	require.NoError(t, DefaultDevices().Validate())
}

func TestResolve_Scalar(t *testing.T) {
	v, err := Resolve("red", "b1", testDevices)
	require.NoError(t, err)
	assert.Equal(t, "red", v)
}

func TestResolve_LargestOnlyCascadesToEveryDevice(t *testing.T) {
	value := New(map[string]any{"b5": 10.0})
	for _, dev := range testDevices {
		v, err := Resolve(value, dev.ID, testDevices)
		require.NoError(t, err)
		assert.Equal(t, 10.0, v, dev.ID)
	}
}

func TestResolve_NearestDefinedAtOrAbove(t *testing.T) {
	value := New(map[string]any{"b5": "xl", "b3": "md", "b1": "xs"})

	cases := map[string]string{"b5": "xl", "b4": "xl", "b3": "md", "b2": "md", "b1": "xs"}
	for device, expected := range cases {
		v, err := Resolve(value, device, testDevices)
		require.NoError(t, err)
		assert.Equal(t, expected, v, device)
	}
}

// An intermediate device can be missing entirely or marked with true. Both
// forms inherit from the next larger device that defines a value.
func TestResolve_AbsentKeyInheritsFromLarger(t *testing.T) {
	value := New(map[string]any{"b1": "red", "b3": "blue"})

	v, err := Resolve(value, "b2", threeDevices)
	require.NoError(t, err)
	assert.Equal(t, "blue", v)
}

// true is always the inherit marker, which is why the schema registry
// refuses responsive boolean props.
func TestResolve_TrueMarkerInheritsFromLarger(t *testing.T) {
	value := New(map[string]any{"b1": "red", "b2": true, "b3": "blue"})

	v, err := Resolve(value, "b2", threeDevices)
	require.NoError(t, err)
	assert.Equal(t, "blue", v)

	v, err = Resolve(value, "b1", threeDevices)
	require.NoError(t, err)
	assert.Equal(t, "red", v)
}

func TestResolve_MissingValue(t *testing.T) {
	value := New(map[string]any{"b1": "red"})

	_, err := Resolve(value, "b2", threeDevices)
	var missing *MissingValueError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "b2", missing.DeviceID)

	_, err = Resolve(value, "nope", threeDevices)
	require.ErrorAs(t, err, &missing)
	assert.Nil(t, ForceGet(value, "b3", threeDevices))
}

func TestResolve_PropsIndependent(t *testing.T) {
	a := New(map[string]any{"b3": "a3", "b1": "a1"})
	b := New(map[string]any{"b3": "b3"})

	va, err := Resolve(a, "b1", threeDevices)
	require.NoError(t, err)
	vb, err := Resolve(b, "b1", threeDevices)
	require.NoError(t, err)
	assert.Equal(t, "a1", va)
	assert.Equal(t, "b3", vb)
}

func TestNormalize(t *testing.T) {
	n, err := Normalize(New(map[string]any{"b3": 1.0, "b1": 2.0}), threeDevices)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{Marker: true, "b3": 1.0, "b2": 1.0, "b1": 2.0}, n)

	n, err = Normalize("x", threeDevices)
	require.NoError(t, err)
	assert.Equal(t, "x", n["b2"])
}

func TestMap(t *testing.T) {
	out, err := Map(New(map[string]any{"b3": 2.0, "b2": true}), func(v any, _ string) (any, error) {
		return v.(float64) * 2, nil
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{Marker: true, "b3": 4.0, "b2": true}, out)

	scalar, err := Map(3.0, func(v any, device string) (any, error) {
		assert.Empty(t, device)
		return v.(float64) + 1, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4.0, scalar)
}

func TestFindDeviceWithDefinedValue(t *testing.T) {
	value := New(map[string]any{"b4": "x", "b2": true})
	dev, ok := FindDeviceWithDefinedValue(value, "b2", testDevices)
	require.True(t, ok)
	assert.Equal(t, "b4", dev.ID)

	_, ok = FindDeviceWithDefinedValue(New(map[string]any{"b1": 1}), "b5", testDevices)
	assert.False(t, ok)
}

func TestResolver_Memoises(t *testing.T) {
	r, err := NewResolver(testDevices, 16)
	require.NoError(t, err)

	value := New(map[string]any{"b5": "x", "b2": "y"})
	for i := 0; i < 3; i++ {
		v, err := r.Resolve(value, "b1")
		require.NoError(t, err)
		assert.Equal(t, "y", v)
	}
	assert.Equal(t, 1, r.Len())

	_, err = r.Resolve(New(map[string]any{"b1": "z"}), "b5")
	var missing *MissingValueError
	assert.ErrorAs(t, err, &missing)
	assert.Equal(t, 2, r.Len())

	v, err := r.Resolve("plain", "b1")
	require.NoError(t, err)
	assert.Equal(t, "plain", v)
	assert.Equal(t, 2, r.Len())
}
