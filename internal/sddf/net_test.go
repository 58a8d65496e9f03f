package sddf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microkit-tools/sdfgen/internal/sdf"
	"github.com/microkit-tools/sdfgen/internal/testutil"
)

func TestParseMAC(t *testing.T) {
	tests := []struct {
		in      string
		want    MAC
		wantErr bool
	}{
		{in: "02:00:00:00:00:01", want: MAC{0x02, 0, 0, 0, 0, 0x01}},
		{in: "aa:bb:cc:dd:ee:ff", want: MAC{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}},
		{in: "02:00:00:00:01", wantErr: true},
		{in: "02:00:00:00:00:01:02", wantErr: true},
		{in: "02:00:00:00:00:zz", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			mac, err := ParseMAC(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, mac)
		})
	}
}

func TestMAC_String(t *testing.T) {
	assert.Equal(t, "02:00:00:00:00:01", MAC{0x02, 0, 0, 0, 0, 0x01}.String())
}

func newNetPDs(t *testing.T, sys *sdf.SystemDescription) (driver, virtRx, virtTx *sdf.ProtectionDomain) {
	t.Helper()
	driver = testutil.NewPD(t, sys, "eth_driver", 254)
	virtRx = testutil.NewPD(t, sys, "net_virt_rx", 250)
	virtTx = testutil.NewPD(t, sys, "net_virt_tx", 250)
	return driver, virtRx, virtTx
}

func TestNet_RejectsNonUnicastMAC(t *testing.T) {
	sys := testutil.NewSystem(t)
	driver, virtRx, virtTx := newNetPDs(t, sys)
	net := NewNet(sys, nil, driver, virtRx, virtTx)

	client := testutil.NewPD(t, sys, "client", 1)
	copier := testutil.NewPD(t, sys, "copier", 99)

	for name, mac := range map[string]MAC{
		"zero":      {},
		"broadcast": {0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		"multicast": {0x01, 0x00, 0x5e, 0x00, 0x00, 0x01},
	} {
		err := net.AddClientWithCopier(client, copier, mac)
		require.Error(t, err, name)
		assert.Equal(t, sdf.ErrCodeInvalidAddress, sdf.CodeOf(err), name)
	}
	assert.Equal(t, 0, net.ClientCount())
}

func TestNet_UniquenessConstraints(t *testing.T) {
	sys := testutil.NewSystem(t)
	driver, virtRx, virtTx := newNetPDs(t, sys)
	net := NewNet(sys, nil, driver, virtRx, virtTx)

	c1 := testutil.NewPD(t, sys, "client1", 1)
	cp1 := testutil.NewPD(t, sys, "copier1", 99)
	mac1 := MAC{0x02, 0, 0, 0, 0, 0x01}
	require.NoError(t, net.AddClientWithCopier(c1, cp1, mac1))

	c2 := testutil.NewPD(t, sys, "client2", 1)
	cp2 := testutil.NewPD(t, sys, "copier2", 99)

	// Duplicate client PD.
	err := net.AddClientWithCopier(c1, cp2, MAC{0x02, 0, 0, 0, 0, 0x02})
	require.Error(t, err)
	assert.True(t, sdf.IsDuplicateClient(err))

	// Duplicate copier PD.
	err = net.AddClientWithCopier(c2, cp1, MAC{0x02, 0, 0, 0, 0, 0x02})
	require.Error(t, err)
	assert.True(t, sdf.IsDuplicateClient(err))

	// Duplicate MAC.
	err = net.AddClientWithCopier(c2, cp2, mac1)
	require.Error(t, err)
	assert.True(t, sdf.IsDuplicateClient(err))

	// Client doubling as its own copier.
	err = net.AddClientWithCopier(c2, c2, MAC{0x02, 0, 0, 0, 0, 0x02})
	require.Error(t, err)
	assert.True(t, sdf.IsInvalidClient(err))

	// Another subsystem PD as copier.
	err = net.AddClientWithCopier(c2, virtTx, MAC{0x02, 0, 0, 0, 0, 0x02})
	require.Error(t, err)
	assert.True(t, sdf.IsInvalidClient(err))

	require.NoError(t, net.AddClientWithCopier(c2, cp2, MAC{0x02, 0, 0, 0, 0, 0x02}))
	assert.Equal(t, 2, net.ClientCount())
}

func TestNet_RemoveClientFreesReservations(t *testing.T) {
	sys := testutil.NewSystem(t)
	driver, virtRx, virtTx := newNetPDs(t, sys)
	net := NewNet(sys, nil, driver, virtRx, virtTx)

	client := testutil.NewPD(t, sys, "client", 1)
	copier := testutil.NewPD(t, sys, "copier", 99)
	mac := MAC{0x02, 0, 0, 0, 0, 0x01}
	require.NoError(t, net.AddClientWithCopier(client, copier, mac))
	require.NoError(t, net.RemoveClient(client))
	assert.Equal(t, 0, net.ClientCount())

	// Copier and MAC are free for reuse after removal.
	other := testutil.NewPD(t, sys, "other", 1)
	require.NoError(t, net.AddClientWithCopier(other, copier, mac))

	require.NoError(t, net.Connect())
	err := net.RemoveClient(other)
	require.Error(t, err)
	assert.True(t, sdf.IsInvalidState(err))
}

func TestNet_ConnectTopology(t *testing.T) {
	sys := testutil.NewSystem(t)
	driver, virtRx, virtTx := newNetPDs(t, sys)
	net := NewNet(sys, nil, driver, virtRx, virtTx)

	c1 := testutil.NewPD(t, sys, "client1", 1)
	cp1 := testutil.NewPD(t, sys, "copier1", 99)
	c2 := testutil.NewPD(t, sys, "client2", 1)
	cp2 := testutil.NewPD(t, sys, "copier2", 99)
	require.NoError(t, net.AddClientWithCopier(c1, cp1, MAC{0x02, 0, 0, 0, 0, 0x01}))
	require.NoError(t, net.AddClientWithCopier(c2, cp2, MAC{0x02, 0, 0, 0, 0, 0x02}))

	require.NoError(t, net.Connect())

	// Two fixed driver links plus two per client.
	chs := net.Channels()
	require.Len(t, chs, 6)
	assert.Equal(t, driver, chs[0].EndA())
	assert.Equal(t, virtRx, chs[0].EndB())
	assert.Equal(t, driver, chs[1].EndA())
	assert.Equal(t, virtTx, chs[1].EndB())

	assert.Equal(t, cp1, chs[2].EndA())
	assert.Equal(t, virtRx, chs[2].EndB())
	assert.Equal(t, c1, chs[3].EndA())
	assert.Equal(t, cp1, chs[3].EndB())
	assert.Equal(t, cp2, chs[4].EndA())
	assert.Equal(t, c2, chs[5].EndA())
}

func TestNet_SerialiseEmitsBlobs(t *testing.T) {
	sys := testutil.NewSystem(t)
	driver, virtRx, virtTx := newNetPDs(t, sys)
	net := NewNet(sys, nil, driver, virtRx, virtTx)

	client := testutil.NewPD(t, sys, "client", 1)
	copier := testutil.NewPD(t, sys, "copier", 99)
	mac := MAC{0x02, 0, 0, 0, 0, 0x01}
	require.NoError(t, net.AddClientWithCopier(client, copier, mac))
	require.NoError(t, net.Connect())

	dir := t.TempDir()
	require.NoError(t, net.SerialiseConfig(dir))

	for _, name := range []string{
		"net_driver_eth_driver.data",
		"net_virt_rx_net_virt_rx.data",
		"net_virt_tx_net_virt_tx.data",
		"net_copier_copier.data",
		"net_client_client.data",
	} {
		_, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
	}

	// The receive virtualiser blob carries the client MAC table.
	vrx, err := os.ReadFile(filepath.Join(dir, "net_virt_rx_net_virt_rx.data"))
	require.NoError(t, err)
	assert.Equal(t, []byte("sddf_net"), vrx[:8])
	assert.Equal(t, mac[:], vrx[20:26])

	cl, err := os.ReadFile(filepath.Join(dir, "net_client_client.data"))
	require.NoError(t, err)
	assert.Equal(t, mac[:], cl[16:22])
}
