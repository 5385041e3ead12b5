// Package circuits contains the helpers shared by every circuit package of
// the proving pipeline: in-circuit error reporting, verifying key hashing and
// persistence of compiled constraint systems and key material.
package circuits

import (
	"fmt"
	"io"
	"os"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/plonk"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"

	"github.com/eigmax/zkMIPS/log"
	"github.com/eigmax/zkMIPS/prover"
)

// FrontendError function is an in-circuit function to print an error message
// and an error trace, making the circuit fail.
func FrontendError(api frontend.API, msg string, trace error) {
	api.Println("in-circuit error: " + msg)
	if trace != nil {
		api.Println(fmt.Sprintf("%s: %s", msg, trace.Error()))
	}
	api.AssertIsEqual(1, 0)
}

// StoreConstraintSystem stores the constraint system in a file.
func StoreConstraintSystem(cs constraint.ConstraintSystem, filepath string) error {
	fd, err := os.Create(filepath)
	if err != nil {
		return err
	}
	defer closeQuietly(fd, "constraint system")
	if _, err := cs.WriteTo(fd); err != nil {
		return err
	}
	log.Debugw("constraint system written", "path", filepath)
	return nil
}

// StoreProvingKey stores a Groth16 proving key in a file, using the raw
// uncompressed encoding since proving keys are large and read often.
func StoreProvingKey(pk groth16.ProvingKey, filepath string) error {
	fd, err := os.Create(filepath)
	if err != nil {
		return err
	}
	defer closeQuietly(fd, "proving key")
	if _, err := pk.WriteRawTo(fd); err != nil {
		return err
	}
	log.Debugw("proving key written", "path", filepath)
	return nil
}

// StoreVerifyingKey stores a Groth16 verifying key in a file.
func StoreVerifyingKey(vk groth16.VerifyingKey, filepath string) error {
	fd, err := os.Create(filepath)
	if err != nil {
		return err
	}
	defer closeQuietly(fd, "verifying key")
	if _, err := vk.WriteRawTo(fd); err != nil {
		return err
	}
	log.Debugw("verifying key written", "path", filepath)
	return nil
}

// LoadConstraintSystem reads a constraint system for the given curve from a
// file.
func LoadConstraintSystem(curve ecc.ID, filepath string) (constraint.ConstraintSystem, error) {
	fd, err := os.Open(filepath)
	if err != nil {
		return nil, err
	}
	defer closeQuietly(fd, "constraint system")
	ccs := groth16.NewCS(curve)
	if _, err := ccs.ReadFrom(fd); err != nil {
		return nil, fmt.Errorf("read constraint system: %w", err)
	}
	return ccs, nil
}

// LoadProvingKey reads a Groth16 proving key for the given curve from a
// file. The key is instantiated through the prover package so that GPU
// proving reads into an ICICLE-ready structure.
func LoadProvingKey(curve ecc.ID, filepath string) (groth16.ProvingKey, error) {
	fd, err := os.Open(filepath)
	if err != nil {
		return nil, err
	}
	defer closeQuietly(fd, "proving key")
	pk := prover.NewProvingKey(curve)
	if _, err := pk.UnsafeReadFrom(fd); err != nil {
		return nil, fmt.Errorf("read proving key: %w", err)
	}
	return pk, nil
}

// LoadVerifyingKey reads a Groth16 verifying key for the given curve from a
// file.
func LoadVerifyingKey(curve ecc.ID, filepath string) (groth16.VerifyingKey, error) {
	fd, err := os.Open(filepath)
	if err != nil {
		return nil, err
	}
	defer closeQuietly(fd, "verifying key")
	vk := groth16.NewVerifyingKey(curve)
	if _, err := vk.ReadFrom(fd); err != nil {
		return nil, fmt.Errorf("read verifying key: %w", err)
	}
	return vk, nil
}

// StorePlonkProvingKey stores a PLONK proving key in a file.
func StorePlonkProvingKey(pk plonk.ProvingKey, filepath string) error {
	fd, err := os.Create(filepath)
	if err != nil {
		return err
	}
	defer closeQuietly(fd, "plonk proving key")
	if _, err := pk.WriteTo(fd); err != nil {
		return err
	}
	return nil
}

// StorePlonkVerifyingKey stores a PLONK verifying key in a file.
func StorePlonkVerifyingKey(vk plonk.VerifyingKey, filepath string) error {
	fd, err := os.Create(filepath)
	if err != nil {
		return err
	}
	defer closeQuietly(fd, "plonk verifying key")
	if _, err := vk.WriteTo(fd); err != nil {
		return err
	}
	return nil
}

// LoadPlonkProvingKey reads a PLONK proving key for the given curve from a
// file.
func LoadPlonkProvingKey(curve ecc.ID, filepath string) (plonk.ProvingKey, error) {
	fd, err := os.Open(filepath)
	if err != nil {
		return nil, err
	}
	defer closeQuietly(fd, "plonk proving key")
	pk := plonk.NewProvingKey(curve)
	if _, err := pk.ReadFrom(fd); err != nil {
		return nil, fmt.Errorf("read plonk proving key: %w", err)
	}
	return pk, nil
}

// LoadPlonkVerifyingKey reads a PLONK verifying key for the given curve from
// a file.
func LoadPlonkVerifyingKey(curve ecc.ID, filepath string) (plonk.VerifyingKey, error) {
	fd, err := os.Open(filepath)
	if err != nil {
		return nil, err
	}
	defer closeQuietly(fd, "plonk verifying key")
	vk := plonk.NewVerifyingKey(curve)
	if _, err := vk.ReadFrom(fd); err != nil {
		return nil, fmt.Errorf("read plonk verifying key: %w", err)
	}
	return vk, nil
}

func closeQuietly(c io.Closer, what string) {
	if err := c.Close(); err != nil {
		log.Warnw("error closing file", "what", what, "error", err)
	}
}
