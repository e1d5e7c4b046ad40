package ipam

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net"
	"strconv"
	"sync"

	"strand/internal/lifecycle"
	"strand/internal/models"

	"gorm.io/gorm"
)

// ErrPoolExhausted — в корневом префиксе не осталось свободных детей.
var ErrPoolExhausted = errors.New("no free child prefix available")

// Pool — встроенный IPAM: нарезает дочерние префиксы заданной длины из
// корневого (режим без NetBox). Занятость — в БД; без БД держим в памяти.
type Pool struct {
	db   *gorm.DB
	root *net.IPNet
	plen int

	mu  sync.Mutex // защищает mem-режим
	mem map[string]string
	seq uint64
}

func NewPool(db *gorm.DB, root string, plen int) (*Pool, error) {
	_, nw, err := net.ParseCIDR(root)
	if err != nil {
		return nil, fmt.Errorf("pool root: %w", err)
	}
	ones, bits := nw.Mask.Size()
	if plen <= ones || plen > bits {
		return nil, fmt.Errorf("pool prefix_len %d out of range for root %s", plen, nw)
	}
	return &Pool{db: db, root: nw, plen: plen, mem: make(map[string]string)}, nil
}

func (p *Pool) ReservePrefix(ctx context.Context, subscriberID string) (lifecycle.PrefixLease, error) {
	if p.db == nil {
		return p.reserveMem(subscriberID)
	}

	var lease lifecycle.PrefixLease
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []models.PoolPrefix
		if err := tx.Find(&existing).Error; err != nil {
			return err
		}
		occupied := make(map[string]bool, len(existing))
		for _, e := range existing {
			if _, nw, err := net.ParseCIDR(e.Prefix); err == nil {
				occupied[nw.String()] = true
			}
		}
		child, err := nextFreeChild(p.root, p.plen, occupied)
		if err != nil {
			return err
		}
		row := models.PoolPrefix{Prefix: child.String(), SubscriberID: subscriberID}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		lease = lifecycle.PrefixLease{ID: strconv.FormatUint(uint64(row.ID), 10), CIDR: row.Prefix}
		return nil
	})
	return lease, err
}

func (p *Pool) ReleasePrefix(ctx context.Context, prefixID string) error {
	if p.db == nil {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.mem, prefixID)
		return nil
	}
	id, err := strconv.ParseUint(prefixID, 10, 64)
	if err != nil {
		return fmt.Errorf("pool release: bad prefix id %q", prefixID)
	}
	// отсутствующая строка — уже освобождено, не ошибка
	return p.db.WithContext(ctx).Unscoped().Delete(&models.PoolPrefix{}, uint(id)).Error
}

func (p *Pool) reserveMem(_ string) (lifecycle.PrefixLease, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	occupied := make(map[string]bool, len(p.mem))
	for _, cidr := range p.mem {
		occupied[cidr] = true
	}
	child, err := nextFreeChild(p.root, p.plen, occupied)
	if err != nil {
		return lifecycle.PrefixLease{}, err
	}
	p.seq++
	id := strconv.FormatUint(p.seq, 10)
	p.mem[id] = child.String()
	return lifecycle.PrefixLease{ID: id, CIDR: child.String()}, nil
}

// nextFreeChild — следующий свободный дочерний префикс длины plen внутри root.
// Та же линейная выдача, что для IPv4-подсетей, но на 128-битной арифметике.
// Первый свободный слот лежит среди первых len(occupied)+1 кандидатов,
// поэтому скан ограничен.
func nextFreeChild(root *net.IPNet, plen int, occupied map[string]bool) (*net.IPNet, error) {
	ones, bits := root.Mask.Size()
	if plen <= ones || plen > bits {
		return nil, fmt.Errorf("invalid child prefix length: %d", plen)
	}

	start := new(big.Int).SetBytes(root.IP.Mask(root.Mask))
	step := new(big.Int).Lsh(big.NewInt(1), uint(bits-plen))
	total := new(big.Int).Lsh(big.NewInt(1), uint(plen-ones))

	for i := 0; i <= len(occupied); i++ {
		idx := big.NewInt(int64(i))
		if idx.Cmp(total) >= 0 {
			return nil, ErrPoolExhausted
		}
		addr := new(big.Int).Add(start, new(big.Int).Mul(idx, step))
		ip := net.IP(addr.FillBytes(make([]byte, bits/8)))
		cand := &net.IPNet{IP: ip, Mask: net.CIDRMask(plen, bits)}
		if !occupied[cand.String()] {
			return cand, nil
		}
	}
	return nil, ErrPoolExhausted
}
