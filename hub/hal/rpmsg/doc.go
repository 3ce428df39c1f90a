// Package rpmsg connects the psh hub to a sensor hub exposed by the Linux
// kernel.
//
// [Transport] talks to an rpmsg character device: fragments are written
// as [channel][8-byte word], and every read returns either a response
// envelope or the 4-byte doorbell "LBUF". [MapRegion] maps the shared
// memory window holding the firmware loop buffer, and [Loader] boots
// firmware through remoteproc sysfs.
//
//	tr, err := rpmsg.Open("/dev/rpmsg_psh0")
//	if err != nil {
//		return err
//	}
//	imr, err := rpmsg.MapRegion("/dev/mem", imrBase, imrSize)
//	if err != nil {
//		return err
//	}
//	h := hub.New(cfg, tr, lbuf.New(imr.Bytes(), nil))
package rpmsg
